package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "count": 2,
  "next": "https://api.rawg.io/api/games?page=2",
  "previous": null,
  "results": [
    {"id": 4200, "name": "Portal 2", "background_image": "https://media.rawg.io/p2.jpg", "metacritic": 95, "released": "2011-04-18"},
    {"id": 4201, "name": "Portal", "background_image": null, "metacritic": null, "released": null}
  ]
}`

const detailBody = `{
  "id": 4200,
  "name": "Portal 2",
  "description": "<p>Portal 2 draws from the award-winning formula.</p>",
  "background_image": "https://media.rawg.io/p2.jpg",
  "metacritic": 95,
  "released": "2011-04-18",
  "genres": [{"id": 2, "name": "Shooter", "slug": "shooter"}],
  "platforms": [
    {"platform": {"id": 4, "name": "PC", "slug": "pc"}, "released_at": "2011-04-18"},
    {"platform": null}
  ],
  "developers": [{"id": 1612, "name": "Valve Software"}],
  "publishers": [{"id": 354, "name": "Electronic Arts"}]
}`

func newTestRAWG(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *RAWGProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewRAWGProvider(srv.Client(), srv.URL+"/api/", "secret-key", timeout)
	require.NoError(t, err)
	return p
}

func TestNewRAWGProvider_RequiresKey(t *testing.T) {
	_, err := NewRAWGProvider(nil, "", "  ", time.Second)
	assert.Error(t, err)

	p, err := NewRAWGProvider(nil, "", "key", time.Second)
	require.NoError(t, err)
	assert.Equal(t, DefaultRAWGBaseURL, p.baseURL)
	assert.Equal(t, "rawg", p.Name())
}

func TestRAWGSearch(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "secret-key", q.Get("key"))
		assert.Equal(t, "portal", q.Get("search"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("page_size"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}, time.Second)

	page, err := p.Search(context.Background(), "portal", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
	require.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)
	require.Len(t, page.Results, 2)

	assert.Equal(t, 4200, page.Results[0].ID)
	assert.Equal(t, 95, *page.Results[0].Metacritic)
	assert.Equal(t, "2011-04-18", page.Results[0].Released.Format("2006-01-02"))

	assert.Empty(t, page.Results[1].BackgroundImage)
	assert.Nil(t, page.Results[1].Metacritic)
	assert.True(t, page.Results[1].Released.IsZero())
	assert.Nil(t, page.Results[1].Released.Ptr())
}

func TestRAWGGetDetails(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games/4200", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(detailBody))
	}, time.Second)

	d, err := p.GetDetails(context.Background(), 4200)
	require.NoError(t, err)
	assert.Equal(t, "Portal 2", d.Name)
	assert.Contains(t, d.Description, "award-winning")
	assert.Equal(t, []NamedEntity{{ID: 2, Name: "Shooter"}}, d.Genres)
	require.Len(t, d.Platforms, 2)
	assert.Equal(t, &NamedEntity{ID: 4, Name: "PC"}, d.Platforms[0].Platform)
	assert.Nil(t, d.Platforms[1].Platform)
	assert.Equal(t, []NamedEntity{{ID: 4, Name: "PC"}}, unwrapPlatforms(d.Platforms))
}

func TestRAWGGetDetails_NotFound(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
	}, time.Second)

	_, err := p.GetDetails(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, classify(opGet, err), ErrNotFound)
}

func TestRAWGGetDetails_EmptyBody(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, time.Second)

	_, err := p.GetDetails(context.Background(), 5)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRAWG_ServerError(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, time.Second)

	_, err := p.Search(context.Background(), "portal", 1, 20)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "search", statusErr.Endpoint)
	assert.ErrorIs(t, classify(opSearch, err), ErrUpstreamUnavailable)
}

func TestRAWG_Timeout(t *testing.T) {
	release := make(chan struct{})
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := p.GetDetails(context.Background(), 4200)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, classify(opGet, err), ErrUpstreamUnavailable)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestRAWG_TransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p, err := NewRAWGProvider(srv.Client(), srv.URL, "secret-key", time.Second)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "portal", 1, 20)
	require.Error(t, err)
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestRAWG_InvalidJSON(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	}, time.Second)

	_, err := p.Search(context.Background(), "portal", 1, 20)
	require.Error(t, err)
	assert.ErrorIs(t, classify(opSearch, err), ErrInternal)
}

func TestRAWG_ResponseTooLarge(t *testing.T) {
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	}, time.Second)
	p.maxBody = 64

	_, err := p.Search(context.Background(), "portal", 1, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response too large")
	assert.NotContains(t, err.Error(), "unexpected end of JSON input")
	assert.ErrorIs(t, classify(opSearch, err), ErrInternal)
}

func TestRAWG_ResponseAtLimit(t *testing.T) {
	body := `{"count":0,"results":[]}`
	p := newTestRAWG(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}, time.Second)
	p.maxBody = int64(len(body))

	page, err := p.Search(context.Background(), "portal", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}
