// Package backend holds thin JSON/HTTP clients for the two external
// back-ends this worker depends on: recognition (face/plate detection and
// search) and analysis (camera/source management). Both are out of scope
// per spec.md §1 — these are contract-only clients, not implementations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Envelope is the common response shape: code!=0 is a logical failure.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is a small JSON-over-HTTP caller shared by RecognitionClient and
// AnalysisClient. No SDK exists in the example corpus for either bespoke
// back-end, so a hand-rolled client using net/http.Client with a
// configured Timeout is the grounded choice (spec.md §5's "implicit
// client-side timeout").
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client bound to baseURL with the given per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// call posts req as JSON to path and decodes the Envelope response body,
// returning an error both on transport failure and on a logical
// (code != 0) failure — per spec.md §7, both are "transient/logical
// back-end" errors handled identically by the caller.
func (c *Client) call(ctx context.Context, path string, req interface{}, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	if env.Code != 0 {
		return fmt.Errorf("%s: backend error %d: %s", path, env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", path, err)
		}
	}
	return nil
}
