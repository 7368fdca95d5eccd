package docscan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client talks to the extraction service over HTTP. Scans are uploaded as
// multipart form data; the answer is a tagged result envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given base URL. The timeout is generous
// because extraction runs OCR on the server side.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// ExtractRequest is one document upload. DeclaredKind is the applicant's own
// claim about what the document is; the service may disagree and the result
// kind wins.
type ExtractRequest struct {
	Filename     string
	DeclaredKind string
	File         io.Reader
}

// Extract uploads a document and returns the decoded result. A transport or
// protocol problem is returned as an error; a scanner-reported extraction
// failure comes back as a result with Kind KindError and is not an error at
// this layer.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (ExtractionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", req.Filename)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: build upload: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: read document: %w", err)
	}
	if req.DeclaredKind != "" {
		if err := mw.WriteField("declared_kind", req.DeclaredKind); err != nil {
			return ExtractionResult{}, fmt.Errorf("docscan: build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: build upload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", &body)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: extract: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ExtractionResult{}, fmt.Errorf("docscan: extract returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return DecodeResult(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
