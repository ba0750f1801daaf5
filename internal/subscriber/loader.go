package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stockledger/internal/domain/ledger"
)

// Loader performs the full-state read a session seeds its snapshot from.
type Loader interface {
	Load(ctx context.Context) ([]ledger.Product, []ledger.LotView, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]ledger.Product, []ledger.LotView, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) ([]ledger.Product, []ledger.LotView, error) {
	return f(ctx)
}

// HTTPLoader reads the full state from the ledger HTTP API.
type HTTPLoader struct {
	BaseURL string // e.g. http://localhost:8080
	Client  *http.Client
}

// NewHTTPLoader creates a loader for the API at baseURL.
func NewHTTPLoader(baseURL string) *HTTPLoader {
	return &HTTPLoader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type listResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context) ([]ledger.Product, []ledger.LotView, error) {
	var products listResponse[ledger.ProductSummary]
	if err := l.get(ctx, "/api/v1/products", &products); err != nil {
		return nil, nil, err
	}
	var lots listResponse[ledger.LotView]
	if err := l.get(ctx, "/api/v1/lots", &lots); err != nil {
		return nil, nil, err
	}

	out := make([]ledger.Product, len(products.Items))
	for i, p := range products.Items {
		out[i] = p.Product
	}
	return out, lots.Items, nil
}

func (l *HTTPLoader) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
