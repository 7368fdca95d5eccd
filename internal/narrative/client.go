package narrative

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Client calls the remote narrative-analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type analyzeRequest struct {
	CaseDescription string `json:"case_description"`
}

// Analyze posts the description and decodes the verdict. A verdict that
// fails the shared validation rules is reported as an error, exactly like a
// transport failure; the caller treats both as a degraded narrative.
func (c *Client) Analyze(ctx context.Context, description string) (Result, error) {
	payload, err := json.Marshal(analyzeRequest{CaseDescription: description})
	if err != nil {
		return Result{}, fmt.Errorf("narrative: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("narrative: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("narrative: analyze: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("narrative: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("narrative: analyze returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("narrative: decode response: %w", err)
	}
	if err := validateResult(res); err != nil {
		return Result{}, fmt.Errorf("narrative: bad verdict: %w", err)
	}
	return res, nil
}
