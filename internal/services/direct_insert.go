package services

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

type DirectInsertRequest struct {
	Email     string  `json:"email"`
	IsPro     bool    `json:"isPro"`
	FirstName *string `json:"firstName,omitempty"`
}

type directInsertResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DirectInsertClient calls this service's own direct-insert endpoint. It is
// the secondary persistence path when the primary write fails.
type DirectInsertClient struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

func NewDirectInsertClient(baseURL, secret string) *DirectInsertClient {
	return &DirectInsertClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/direct-insert",
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *DirectInsertClient) Insert(ctx context.Context, in DirectInsertRequest) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result directInsertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("direct insert: status %d, undecodable body: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK || !result.Success {
		if result.Error == "" {
			result.Error = "direct insert failed"
		}
		return fmt.Errorf("direct insert: status %d: %s", resp.StatusCode, result.Error)
	}
	return nil
}
