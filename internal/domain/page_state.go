package domain

import "time"

// PageSummary is a page without its snapshot, for listing in the sidebar.
type PageSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	ResultCount int       `json:"resultCount"`
	HasSnapshot bool      `json:"hasSnapshot"`
	Persisted   bool      `json:"persisted"`
}

// NotebookState represents the complete state of the notebook for rendering.
// Returned to the frontend after every page operation.
type NotebookState struct {
	Pages        []PageSummary `json:"pages"`
	ActivePageID string        `json:"activePageId"`
	Results      []Result      `json:"results"`
	Variables    Variables     `json:"variables"`
	MaxPages     int           `json:"maxPages"`
}
