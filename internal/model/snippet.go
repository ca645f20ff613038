// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. There is no inheritance;
// Go favours composition.
package model

import "time"

// Snippet is one cloaked paste: a fake body for ordinary visitors and a real
// body for privileged clients, stored under a single slug.
//
// Only Views and LastAccessed ever change after creation. Everything else is
// written once by the repository's Create.
//
// The `json:"..."` tags are used by the admin CLI's full dump. HTTP handlers
// never encode a Snippet directly: the public and listing endpoints use
// SnippetSummary, so the secret key cannot slip into those responses.
type Snippet struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	ContentFake  string     `json:"content_fake"`
	ContentReal  string     `json:"content_real"`
	SecretKey    string     `json:"secret_key"`
	Views        int64      `json:"views"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed *time.Time `json:"last_accessed"` // nil until the first serving read
}

// Summary strips the content bodies and the secret key.
func (s *Snippet) Summary() SnippetSummary {
	return SnippetSummary{
		Slug:         s.Slug,
		CreatedAt:    s.CreatedAt,
		Views:        s.Views,
		LastAccessed: s.LastAccessed,
	}
}

// SnippetSummary is the listing/search shape. It deliberately has no field
// that could hold content or the secret key.
type SnippetSummary struct {
	Slug         string     `json:"slug"`
	CreatedAt    time.Time  `json:"created_at"`
	Views        int64      `json:"views"`
	LastAccessed *time.Time `json:"last_accessed"`
}
