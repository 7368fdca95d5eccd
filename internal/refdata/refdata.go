// Package refdata reads the reference-data service: the valid case types
// and, per type, which documents a complete case needs. The data changes
// rarely, so a read-through cache in front of the client keeps the wizard's
// hot path off the network.
package refdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// CaseTypeInfo is one selectable claim category.
type CaseTypeInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Requirements lists the document identifiers a case type calls for.
type Requirements struct {
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

// Client is the HTTP client for the reference-data service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) CaseTypes(ctx context.Context) ([]CaseTypeInfo, error) {
	var out struct {
		CaseTypes []CaseTypeInfo `json:"case_types"`
	}
	if err := c.getJSON(ctx, "/v1/case-types", &out); err != nil {
		return nil, err
	}
	return out.CaseTypes, nil
}

func (c *Client) Requirements(ctx context.Context, caseType string) (Requirements, error) {
	var out Requirements
	if err := c.getJSON(ctx, "/v1/case-types/"+caseType+"/documents", &out); err != nil {
		return Requirements{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("refdata: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refdata: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("refdata: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refdata: get %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("refdata: decode %s: %w", path, err)
	}
	return nil
}

// Source is what the catalog caches over; the HTTP client satisfies it.
type Source interface {
	CaseTypes(ctx context.Context) ([]CaseTypeInfo, error)
	Requirements(ctx context.Context, caseType string) (Requirements, error)
}

// Catalog caches reference data for the process lifetime. Failed fetches are
// not cached, so a flapping service heals on the next call.
type Catalog struct {
	source Source

	mu    sync.Mutex
	types []CaseTypeInfo
	reqs  map[string]Requirements
}

func NewCatalog(source Source) *Catalog {
	return &Catalog{
		source: source,
		reqs:   make(map[string]Requirements),
	}
}

// CaseTypes returns the cached category list, fetching it on first use.
func (c *Catalog) CaseTypes(ctx context.Context) ([]CaseTypeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.types != nil {
		return append([]CaseTypeInfo(nil), c.types...), nil
	}
	types, err := c.source.CaseTypes(ctx)
	if err != nil {
		return nil, err
	}
	c.types = types
	return append([]CaseTypeInfo(nil), types...), nil
}

// Requirements returns the cached document list for a case type, fetching
// it on first use.
func (c *Catalog) Requirements(ctx context.Context, caseType string) (Requirements, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.reqs[caseType]; ok {
		return r, nil
	}
	r, err := c.source.Requirements(ctx, caseType)
	if err != nil {
		return Requirements{}, err
	}
	c.reqs[caseType] = r
	return r, nil
}
