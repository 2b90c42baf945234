package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Provider defines the interface for fetching game metadata upstream.
type Provider interface {
	// Name returns the provider name (e.g., "rawg").
	Name() string
	// Search returns one page of games matching the query.
	Search(ctx context.Context, query string, page, pageSize int) (*SearchPage, error)
	// GetDetails fetches the full record for a game id. It returns
	// ErrGameNotFound when the provider confirms the id does not exist.
	GetDetails(ctx context.Context, id int) (*GameDetail, error)
}

// SearchPage is one page of a paginated search response.
type SearchPage struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []SearchResult `json:"results"`
}

// SearchResult is a game as listed in search results.
type SearchResult struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	BackgroundImage string `json:"background_image"`
	Metacritic      *int   `json:"metacritic"`
	Released        Date   `json:"released"`
}

// GameDetail is the full record for one game.
type GameDetail struct {
	SearchResult
	Description string            `json:"description"`
	Genres      []NamedEntity     `json:"genres"`
	Platforms   []PlatformWrapper `json:"platforms"`
	Developers  []NamedEntity     `json:"developers"`
	Publishers  []NamedEntity     `json:"publishers"`
}

// NamedEntity is an (id, name) pair for genres, developers, publishers and
// platforms.
type NamedEntity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PlatformWrapper nests a platform one level deeper than the other categories.
type PlatformWrapper struct {
	Platform *NamedEntity `json:"platform"`
}

// Date is a calendar date encoded as "YYYY-MM-DD". Null or empty decodes to
// the zero Date.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date %s: %w", b, err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// Ptr returns nil for the zero Date and a pointer to the time otherwise.
func (d Date) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
