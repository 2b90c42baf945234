package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ryanm101/gamelens/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRAWGBaseURL is the public RAWG API root.
const DefaultRAWGBaseURL = "https://api.rawg.io/api"

// maxResponseBytes caps how much of an upstream JSON body is read.
const maxResponseBytes = 8 << 20

// NewHTTPClient returns an HTTP client whose requests are traced.
// Per-call deadlines come from the request context.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// RAWGProvider implements the Provider interface for the RAWG API.
type RAWGProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	maxBody int64
}

// NewRAWGProvider creates a RAWG provider. An API key is required.
// A zero timeout disables the per-call deadline.
func NewRAWGProvider(client *http.Client, baseURL, apiKey string, timeout time.Duration) (*RAWGProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("RAWG API key is required")
	}
	if client == nil {
		client = NewHTTPClient()
	}
	if baseURL == "" {
		baseURL = DefaultRAWGBaseURL
	}
	return &RAWGProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		maxBody: maxResponseBytes,
	}, nil
}

func (p *RAWGProvider) Name() string {
	return "rawg"
}

// Search requests one page of games matching query.
func (p *RAWGProvider) Search(ctx context.Context, query string, page, pageSize int) (*SearchPage, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))

	var result SearchPage
	if err := p.get(ctx, "search", "/games", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDetails requests the full record of one game.
func (p *RAWGProvider) GetDetails(ctx context.Context, id int) (*GameDetail, error) {
	var result GameDetail
	err := p.get(ctx, "detail", "/games/"+strconv.Itoa(id), url.Values{}, &result)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
		}
		return nil, err
	}
	if result.ID == 0 {
		return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	return &result, nil
}

// get performs one GET against the API and decodes the JSON body into out.
// The API key travels as a query parameter and is never logged.
func (p *RAWGProvider) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	params.Set("key", p.apiKey)
	u := p.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		metrics.RecordUpstream(endpoint, "error", start)
		return &TransportError{Endpoint: endpoint, Err: stripURL(err)}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstream(endpoint, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	if int64(len(body)) > p.maxBody {
		return fmt.Errorf("%s response too large: exceeds %d bytes", endpoint, p.maxBody)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// stripURL drops the request URL, which carries the API key, from client errors.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
