package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrAuthUserNotFound = errors.New("auth user not found")
	ErrAuthUserExists   = errors.New("auth user already registered")
)

const adminUsersPageSize = 200

type GoTrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GoTrueClient talks to the hosted auth admin API with the service role key.
type GoTrueClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewGoTrueClient(baseURL, serviceKey string) *GoTrueClient {
	return &GoTrueClient{
		baseURL:    strings.TrimRight(baseURL, "/") + "/auth/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendRecovery asks the auth provider to email a password reset link that
// lands on redirectTo.
func (c *GoTrueClient) SendRecovery(ctx context.Context, email, redirectTo string) error {
	endpoint := c.baseURL + "/recover"
	if redirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, endpoint, map[string]string{"email": email}, nil)
}

func (c *GoTrueClient) CreateUser(ctx context.Context, email, password string) error {
	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/admin/users", payload, nil)
}

func (c *GoTrueClient) FindUserByEmail(ctx context.Context, email string) (*GoTrueUser, error) {
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/admin/users?page=%d&per_page=%d", c.baseURL, page, adminUsersPageSize)

		var result struct {
			Users []GoTrueUser `json:"users"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
			return nil, err
		}

		for i := range result.Users {
			if result.Users[i].Email == email {
				return &result.Users[i], nil
			}
		}
		if len(result.Users) < adminUsersPageSize {
			return nil, fmt.Errorf("%w: %s", ErrAuthUserNotFound, email)
		}
	}
}

func (c *GoTrueClient) UpdatePassword(ctx context.Context, email, password string) error {
	u, err := c.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/admin/users/" + url.PathEscape(u.ID)
	return c.do(ctx, http.MethodPut, endpoint, map[string]string{"password": password}, nil)
}

func (c *GoTrueClient) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return classifyGoTrueError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func classifyGoTrueError(status int, body []byte) error {
	msg := strings.ToLower(string(body))
	switch {
	case status == http.StatusNotFound || strings.Contains(msg, "user not found"):
		return fmt.Errorf("%w: status %d", ErrAuthUserNotFound, status)
	case strings.Contains(msg, "already") && strings.Contains(msg, "registered"):
		return fmt.Errorf("%w: status %d", ErrAuthUserExists, status)
	default:
		return fmt.Errorf("auth API error: status %d, body: %s", status, string(body))
	}
}
