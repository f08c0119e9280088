// Package faceclient talks to the face comparison microservice.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CompareResult is the service verdict for two images.
type CompareResult struct {
	Similarity float64 `json:"similarity"`
	Match      bool    `json:"match"`
	Threshold  float64 `json:"threshold"`
}

// Client calls the face recognition microservice. With Skip set every
// comparison matches without a network call.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Compare compares two images, each a URL or data URL.
func (c *Client) Compare(ctx context.Context, image1, image2 string) (*CompareResult, error) {
	if c.Skip {
		return &CompareResult{Similarity: 0.85, Match: true, Threshold: 0.5}, nil
	}

	body, _ := json.Marshal(map[string]string{
		"image_url_1": image1,
		"image_url_2": image2,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/compare", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out CompareResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Verify reports whether capture shows the same face as the stored template.
func (c *Client) Verify(ctx context.Context, template, capture string) (bool, error) {
	if strings.TrimSpace(capture) == "" {
		return false, nil
	}
	res, err := c.Compare(ctx, template, capture)
	if err != nil {
		return false, err
	}
	return res.Match, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
