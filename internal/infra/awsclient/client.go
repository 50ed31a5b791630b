package awsclient

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

	"apiregistry/internal/config"
)

const (
	awsServiceDynamoDB = "dynamodb"
	awsTargetPrefix    = "DynamoDB_20120810."
	localAccessKey     = "local"
)

// Client speaks the DynamoDB JSON 1.0 protocol with SigV4 signed requests.
type Client struct {
	endpoint   string
	signer     signer
	httpClient *http.Client
	clock      func() time.Time
}

func New(endpoint, region, accessKey, secretKey, sessionToken string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		signer: signer{
			service:      awsServiceDynamoDB,
			region:       region,
			accessKey:    accessKey,
			secretKey:    secretKey,
			sessionToken: sessionToken,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      time.Now,
	}
}

// NewFromConfig targets DYNAMODB_ENDPOINT when set. A local endpoint accepts
// any credentials, so placeholder keys are used when none are configured.
func NewFromConfig(cfg config.Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		return nil, errors.New("AWS_REGION is required")
	}
	accessKey := cfg.Store.AWSAccessKeyID
	secretKey := cfg.Store.AWSSecretAccessKey
	endpoint := cfg.Store.DynamoDBEndpoint
	if accessKey == "" || secretKey == "" {
		if endpoint == "" {
			return nil, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required")
		}
		accessKey, secretKey = localAccessKey, localAccessKey
	}
	if endpoint == "" {
		endpoint = "https://dynamodb." + region + ".amazonaws.com"
	}
	return New(endpoint, region, accessKey, secretKey, cfg.Store.AWSSessionToken), nil
}

func (c *Client) WithClock(clock func() time.Time) *Client {
	if c == nil {
		return nil
	}
	c.clock = clock
	return c
}

func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if c == nil {
		return nil
	}
	c.httpClient = httpClient
	return c
}

func (c *Client) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// APIError is a non-200 response from DynamoDB.
type APIError struct {
	StatusCode int
	Type       string `json:"__type"`
	Message    string `json:"message"`
}

// Code is the exception name without its namespace prefix.
func (e *APIError) Code() string {
	if idx := strings.LastIndex(e.Type, "#"); idx >= 0 {
		return e.Type[idx+1:]
	}
	return e.Type
}

func (e *APIError) Error() string {
	code := e.Code()
	if code == "" {
		code = "UnknownError"
	}
	if e.Message == "" {
		return fmt.Sprintf("dynamodb %s: status %d", code, e.StatusCode)
	}
	return fmt.Sprintf("dynamodb %s: %s (status %d)", code, e.Message, e.StatusCode)
}

func (c *Client) do(ctx context.Context, target string, payload, out any) error {
	if c == nil {
		return errors.New("aws client is nil")
	}
	if c.endpoint == "" || !c.signer.configured() {
		return errors.New("aws client missing configuration")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.0")
	req.Header.Set("X-Amz-Target", awsTargetPrefix+target)

	if c.clock == nil {
		c.clock = time.Now
	}
	if err := c.signer.sign(req, body, c.clock().UTC()); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", target, err)
	}
	return nil
}
