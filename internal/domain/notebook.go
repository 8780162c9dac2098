package domain

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Snapshot is a PNG data URL of the canvas bitmap ("data:image/png;base64,...").
type Snapshot string

// IsZero reports whether no snapshot has been captured.
func (s Snapshot) IsZero() bool {
	return strings.TrimSpace(string(s)) == ""
}

// Result is one expression/answer pair shown on a page.
type Result struct {
	Expression string `json:"expression"`
	Answer     string `json:"answer"`
}

type Page struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Results   []Result  `json:"results"`
	Snapshot  Snapshot  `json:"snapshot,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Page) Clone() Page {
	out := p
	out.Results = slices.Clone(p.Results)
	return out
}

// PageStore persists notebook pages. Implemented by the remote notebook
// service client and by the local SQL and Mongo stores.
type PageStore interface {
	ListPages(ctx context.Context) ([]Page, error)
	CreatePage(ctx context.Context, p *Page) error
	UpdatePage(ctx context.Context, p *Page) error
	DeletePage(ctx context.Context, id string) error
}
