package domain

const (
	PolicyVersion    = "2012-10-17"
	ActionInvoke     = "execute-api:Invoke"
	ConditionIPKey   = "aws:SourceIp"
	DefaultPrincipal = "id"
)

type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// AuthorizationRequest is the event an API gateway sends to a request
// authorizer. Only the fields the issuer reads are decoded.
type AuthorizationRequest struct {
	Type               string         `json:"type"`
	MethodArn          string         `json:"methodArn"`
	AuthorizationToken string         `json:"authorizationToken,omitempty"`
	Principal          string         `json:"principal,omitempty"`
	RequestContext     RequestContext `json:"requestContext"`
}

type RequestContext struct {
	RequestID string          `json:"requestId,omitempty"`
	Stage     string          `json:"stage,omitempty"`
	AccountID string          `json:"accountId,omitempty"`
	APIID     string          `json:"apiId,omitempty"`
	Identity  RequestIdentity `json:"identity"`
}

type RequestIdentity struct {
	SourceIP  string `json:"sourceIp,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Condition is evaluated by the gateway, not by the issuer.
type Condition struct {
	IPAddress    map[string][]string `json:"IpAddress,omitempty"`
	NotIPAddress map[string][]string `json:"NotIpAddress,omitempty"`
}

type Statement struct {
	Action    string    `json:"Action"`
	Effect    Effect    `json:"Effect"`
	Condition Condition `json:"Condition"`
	Resource  string    `json:"Resource"`
}

type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// AuthorizerResponse is the access policy handed back to the gateway.
type AuthorizerResponse struct {
	PrincipalID    string         `json:"principalId"`
	PolicyDocument PolicyDocument `json:"policyDocument"`
	Context        map[string]any `json:"context,omitempty"`
}

// PolicyInput is what an effect engine sees for one request.
type PolicyInput struct {
	Resource  string `json:"resource"`
	Principal string `json:"principal"`
	SourceIP  string `json:"source_ip,omitempty"`
	Stage     string `json:"stage,omitempty"`
}
