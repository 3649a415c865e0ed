package selfie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is the outcome of a selfie-to-reference comparison.
type Result struct {
	Match      bool    `json:"match"`
	Similarity float64 `json:"similarity"`
}

// Verifier performs a liveness/match check of a submitted selfie against a
// user's stored reference image. The core never implements this itself.
type Verifier interface {
	Verify(ctx context.Context, selfieRef, referenceRef string) (Result, error)
}

// Client talks to an external face-comparison service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	skip       bool
}

// New creates a client. With skip set every check reports a match, which is
// the dev-mode escape hatch when no face service runs locally.
func New(baseURL string, skip bool) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		skip:       skip,
	}
}

// Health pings the face service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

// Verify compares the submitted selfie against the stored reference image.
func (c *Client) Verify(ctx context.Context, selfieRef, referenceRef string) (Result, error) {
	if c.skip {
		return Result{Match: true, Similarity: 1}, nil
	}

	payload, err := json.Marshal(map[string]string{
		"image1_url": selfieRef,
		"image2_url": referenceRef,
	})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("face service returned %s", resp.Status)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	return out, nil
}
