package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inkquiry/internal/domain"
)

var ErrPageNotFound = errors.New("page not found")

// PageStore implements domain.PageStore on a SQL database.
type PageStore struct {
	db *DB
}

func NewPageStore(db *DB) *PageStore {
	return &PageStore{db: db}
}

func (s *PageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name, canvas_data, content_json, created_at FROM pages ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		var snap, content string
		if err := rows.Scan(&p.ID, &p.Name, &snap, &content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		p.Snapshot = domain.Snapshot(snap)
		if err := json.Unmarshal([]byte(content), &p.Results); err != nil {
			return nil, fmt.Errorf("decode results of page %s: %w", p.ID, err)
		}
		if p.Results == nil {
			p.Results = []domain.Result{}
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	content, err := encodeResults(p.Results)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	now := time.Now().UTC()

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer tx.Rollback()

	var order int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), 0) FROM pages`).Scan(&order); err != nil {
		return fmt.Errorf("create page: next order: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.db.rebind(
		`INSERT INTO pages (id, name, canvas_data, content_json, created_at, updated_at, sort_order) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Name, string(p.Snapshot), content, p.CreatedAt.UTC(), now, order+1,
	)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return tx.Commit()
}

func (s *PageStore) UpdatePage(ctx context.Context, p *domain.Page) error {
	content, err := encodeResults(p.Results)
	if err != nil {
		return err
	}
	res, err := s.db.conn.ExecContext(ctx, s.db.rebind(
		`UPDATE pages SET name = ?, canvas_data = ?, content_json = ?, updated_at = ? WHERE id = ?`),
		p.Name, string(p.Snapshot), content, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update page %s: %w", p.ID, ErrPageNotFound)
	}
	return nil
}

func (s *PageStore) DeletePage(ctx context.Context, id string) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.rebind(`DELETE FROM pages WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

// GetPage returns a single page, or ErrPageNotFound.
func (s *PageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var p domain.Page
	var snap, content string
	err := s.db.conn.QueryRowContext(ctx, s.db.rebind(
		`SELECT id, name, canvas_data, content_json, created_at FROM pages WHERE id = ?`), id,
	).Scan(&p.ID, &p.Name, &snap, &content, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get page %s: %w", id, ErrPageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	p.Snapshot = domain.Snapshot(snap)
	if err := json.Unmarshal([]byte(content), &p.Results); err != nil {
		return nil, fmt.Errorf("decode results of page %s: %w", id, err)
	}
	return &p, nil
}

func encodeResults(results []domain.Result) (string, error) {
	if results == nil {
		results = []domain.Result{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	return string(data), nil
}
