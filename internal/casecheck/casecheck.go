// Package casecheck talks to the document-completeness service: given a
// case type and what the case already holds, it answers which required
// documents are present, which are missing, and how critical each gap is.
package casecheck

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DocumentStatus is the verdict for one required document.
type DocumentStatus struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Present  bool   `json:"present"`
	Critical bool   `json:"critical"`
}

// Result is the full completeness verdict for a case.
type Result struct {
	Documents       []DocumentStatus `json:"documents"`
	MissingCritical []string         `json:"missing_critical"`
	MissingOther    []string         `json:"missing_other"`
}

// Complete reports whether no critical document is missing.
func (r Result) Complete() bool {
	return len(r.MissingCritical) == 0
}

// Request describes one check. IdentityDocument is an optional path to the
// stored identity scan; when set, the file rides along so the service can
// verify it directly.
type Request struct {
	CaseType         string
	KnownDocuments   []string
	IdentityDocument string
}

// Client is the HTTP client for the completeness service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Check submits the case state and returns the service verdict. Any
// transport or protocol problem is an error; the caller decides how fatal
// that is.
func (c *Client) Check(ctx context.Context, req Request) (Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("case_type", req.CaseType); err != nil {
		return Result{}, fmt.Errorf("casecheck: build request: %w", err)
	}
	known, err := json.Marshal(req.KnownDocuments)
	if err != nil {
		return Result{}, fmt.Errorf("casecheck: encode known documents: %w", err)
	}
	if err := mw.WriteField("known_documents", string(known)); err != nil {
		return Result{}, fmt.Errorf("casecheck: build request: %w", err)
	}
	if req.IdentityDocument != "" {
		if err := attachFile(mw, req.IdentityDocument); err != nil {
			return Result{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("casecheck: build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completeness", &body)
	if err != nil {
		return Result{}, fmt.Errorf("casecheck: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("casecheck: check: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("casecheck: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("casecheck: check returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("casecheck: decode response: %w", err)
	}
	return res, nil
}

func attachFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("casecheck: open identity document: %w", err)
	}
	defer f.Close()
	part, err := mw.CreateFormFile("identity_document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("casecheck: build request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("casecheck: attach identity document: %w", err)
	}
	return nil
}
