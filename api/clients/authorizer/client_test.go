package authorizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	httpinfra "apiregistry/internal/infra/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newAuthorizerServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Authorization: config.Authorization{
			WhitelistIP: []string{"203.0.113.0/24"},
			BlacklistIP: []string{"203.0.113.7"},
		},
	}
	srv, err := httpinfra.NewServer(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

func TestAuthorizeRoundTrip(t *testing.T) {
	ts := newAuthorizerServer(t)
	client := NewClient(ts.URL+"/", WithHTTPClient(ts.Client()))

	resp, err := client.Authorize(context.Background(), Event{
		Type:      "REQUEST",
		MethodArn: "arn:aws:execute-api:sa-east-1:123456789012:abc/dev/GET/services",
		RequestContext: RequestContext{
			RequestID: "req-42",
			Identity:  Identity{SourceIP: "203.0.113.9"},
		},
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	stmt := resp.PolicyDocument.Statement[0]
	if stmt.Effect != string(domain.EffectAllow) {
		t.Fatalf("expected Allow, got %q", stmt.Effect)
	}
	if got := stmt.Condition.NotIPAddress[domain.ConditionIPKey]; len(got) != 1 || got[0] != "203.0.113.7" {
		t.Fatalf("expected denylist condition, got %+v", stmt.Condition)
	}
	if resp.Context["requestId"] != "req-42" || resp.Context["sourceIp"] != "203.0.113.9" {
		t.Fatalf("expected caller context to be echoed, got %+v", resp.Context)
	}
}

func TestAuthorizeErrorReply(t *testing.T) {
	ts := newAuthorizerServer(t)
	client := NewClient(ts.URL, WithHTTPClient(ts.Client()))

	_, err := client.Authorize(context.Background(), Event{Type: "REQUEST"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "INVALID_REQUEST" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestEventMatchesServerShape(t *testing.T) {
	event := Event{
		Type:               "REQUEST",
		MethodArn:          "arn:test:1",
		AuthorizationToken: "token",
		RequestContext: RequestContext{
			RequestID: "req-1",
			Stage:     "dev",
			AccountID: "123456789012",
			APIID:     "abc",
			Identity:  Identity{SourceIP: "203.0.113.9", UserAgent: "curl"},
		},
	}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.AuthorizationRequest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.MethodArn != event.MethodArn ||
		decoded.RequestContext.APIID != "abc" ||
		decoded.RequestContext.Identity.UserAgent != "curl" {
		t.Fatalf("event fields lost on the way to the server: %+v", decoded)
	}
}

func TestAuthorizeRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("").Authorize(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error without base URL")
	}
}
