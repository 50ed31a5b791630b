// Package authorizer is a typed client for the authorizer's HTTP adapter.
package authorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Event is the request-authorizer event a gateway sends.
type Event struct {
	Type               string         `json:"type"`
	MethodArn          string         `json:"methodArn"`
	AuthorizationToken string         `json:"authorizationToken,omitempty"`
	Principal          string         `json:"principal,omitempty"`
	RequestContext     RequestContext `json:"requestContext"`
}

type RequestContext struct {
	RequestID string   `json:"requestId,omitempty"`
	Stage     string   `json:"stage,omitempty"`
	AccountID string   `json:"accountId,omitempty"`
	APIID     string   `json:"apiId,omitempty"`
	Identity  Identity `json:"identity"`
}

type Identity struct {
	SourceIP  string `json:"sourceIp,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Policy is the issued access policy.
type Policy struct {
	PrincipalID    string         `json:"principalId"`
	PolicyDocument PolicyDocument `json:"policyDocument"`
	Context        map[string]any `json:"context,omitempty"`
}

type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

type Statement struct {
	Action    string    `json:"Action"`
	Effect    string    `json:"Effect"`
	Condition Condition `json:"Condition"`
	Resource  string    `json:"Resource"`
}

type Condition struct {
	IPAddress    map[string][]string `json:"IpAddress,omitempty"`
	NotIPAddress map[string][]string `json:"NotIpAddress,omitempty"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Error is a non-2xx reply. It never carries a policy.
type Error struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("authorize failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("authorize failed: status %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Authorize posts the gateway event and returns the issued policy.
func (c *Client) Authorize(ctx context.Context, event Event) (Policy, error) {
	if c == nil {
		return Policy{}, errors.New("authorizer client is nil")
	}
	if c.BaseURL == "" {
		return Policy{}, errors.New("authorizer base URL is required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return Policy{}, fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/authorize", bytes.NewReader(body))
	if err != nil {
		return Policy{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if event.RequestContext.RequestID != "" {
		req.Header.Set("X-Request-ID", event.RequestContext.RequestID)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Policy{}, fmt.Errorf("authorize: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Policy{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return Policy{}, apiErr
	}
	var out Policy
	if err := json.Unmarshal(data, &out); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	return out, nil
}
