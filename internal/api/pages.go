package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inkquiry/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Page wire format
// ─────────────────────────────────────────────────────────────

// pageWire is the only place that knows about the two casings the backend
// and older clients use. Both are written; snake case wins on read.
type pageWire struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Content          []resultWire `json:"content"`
	CanvasData       *string      `json:"canvas_data"`
	CanvasDataCamel  *string      `json:"canvasData,omitempty"`
	DateCreated      *wireTime    `json:"date_created,omitempty"`
	DateCreatedCamel *wireTime    `json:"dateCreated,omitempty"`
}

type resultWire struct {
	Expression string `json:"expression"`
	Answer     string `json:"answer"`
}

func toWire(p domain.Page) pageWire {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	w := pageWire{
		ID:               p.ID,
		Name:             p.Name,
		Content:          make([]resultWire, 0, len(p.Results)),
		DateCreated:      &wireTime{created},
		DateCreatedCamel: &wireTime{created},
	}
	for _, r := range p.Results {
		w.Content = append(w.Content, resultWire{Expression: r.Expression, Answer: r.Answer})
	}
	if !p.Snapshot.IsZero() {
		s := string(p.Snapshot)
		w.CanvasData = &s
		w.CanvasDataCamel = &s
	}
	return w
}

func (w pageWire) toDomain() domain.Page {
	p := domain.Page{
		ID:      w.ID,
		Name:    w.Name,
		Results: make([]domain.Result, 0, len(w.Content)),
	}
	for _, r := range w.Content {
		p.Results = append(p.Results, domain.Result{Expression: r.Expression, Answer: r.Answer})
	}
	switch {
	case w.CanvasData != nil && *w.CanvasData != "":
		p.Snapshot = domain.Snapshot(*w.CanvasData)
	case w.CanvasDataCamel != nil:
		p.Snapshot = domain.Snapshot(*w.CanvasDataCamel)
	}
	switch {
	case w.DateCreated != nil && !w.DateCreated.IsZero():
		p.CreatedAt = w.DateCreated.Time
	case w.DateCreatedCamel != nil:
		p.CreatedAt = w.DateCreatedCamel.Time
	}
	return p
}

// wireTime reads ISO timestamps with or without a zone; the backend emits
// naive datetimes. Zone-less values are taken as UTC.
type wireTime struct {
	time.Time
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			t.Time = time.Time{}
			return nil
		}
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var firstErr error
	for _, layout := range wireTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ─────────────────────────────────────────────────────────────
// Remote page store
// ─────────────────────────────────────────────────────────────

// Pages returns the /notebook/pages endpoints as a PageStore.
func (c *Client) Pages() domain.PageStore {
	return &remotePages{c: c}
}

type remotePages struct {
	c *Client
}

func (r *remotePages) ListPages(ctx context.Context) ([]domain.Page, error) {
	var wire []pageWire
	if err := r.c.doJSON(ctx, http.MethodGet, "/notebook/pages", nil, &wire); err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, len(wire))
	for _, w := range wire {
		pages = append(pages, w.toDomain())
	}
	return pages, nil
}

func (r *remotePages) CreatePage(ctx context.Context, p *domain.Page) error {
	return r.c.doJSON(ctx, http.MethodPost, "/notebook/pages", toWire(*p), nil)
}

func (r *remotePages) UpdatePage(ctx context.Context, p *domain.Page) error {
	return r.c.doJSON(ctx, http.MethodPut, "/notebook/pages/"+url.PathEscape(p.ID), toWire(*p), nil)
}

func (r *remotePages) DeletePage(ctx context.Context, id string) error {
	return r.c.doJSON(ctx, http.MethodDelete, "/notebook/pages/"+url.PathEscape(id), nil, nil)
}
