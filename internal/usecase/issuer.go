package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	"apiregistry/internal/observability"

	"github.com/rs/zerolog"
)

// StaticEffect is an EffectEngine that always returns the same effect.
type StaticEffect domain.Effect

func (e StaticEffect) Decide(ctx context.Context, _ domain.PolicyInput) (domain.Effect, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return domain.Effect(e), nil
}

// Issuer builds the access policy document for each authorization request.
// The IP condition is attached verbatim for the gateway to evaluate; the
// issuer never inspects the caller address itself. State is fixed at
// construction, so one Issuer can serve concurrent requests.
type Issuer struct {
	engine    EffectEngine
	principal string
	allow     []string
	deny      []string
	logger    zerolog.Logger
}

// NewIssuer refuses to build an issuer without an allowlist, or with an
// entry that is neither an address nor a CIDR prefix. A nil engine always
// allows.
func NewIssuer(auth config.Authorization, engine EffectEngine, logger zerolog.Logger) (*Issuer, error) {
	if auth.WhitelistIP == nil {
		return nil, fmt.Errorf("%w: Authorization.whitelist_ip is missing", domain.ErrConfig)
	}
	if len(auth.WhitelistIP) == 0 {
		return nil, fmt.Errorf("%w: Authorization.whitelist_ip is empty", domain.ErrConfig)
	}
	allow, err := normalizeAddresses("whitelist_ip", auth.WhitelistIP)
	if err != nil {
		return nil, err
	}
	deny, err := normalizeAddresses("blacklist_ip", auth.BlacklistIP)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		engine = StaticEffect(domain.EffectAllow)
	}
	principal := auth.PrincipalID
	if principal == "" {
		principal = domain.DefaultPrincipal
	}
	return &Issuer{
		engine:    engine,
		principal: principal,
		allow:     allow,
		deny:      deny,
		logger:    logger,
	}, nil
}

// normalizeAddresses returns the entries with surrounding whitespace
// removed, which is the form the gateway compares against. Entries that are
// neither an address nor a CIDR prefix are rejected.
func normalizeAddresses(field string, entries []string) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(entries))
	for i, raw := range entries {
		entry := strings.TrimSpace(raw)
		_, prefixErr := netip.ParsePrefix(entry)
		_, addrErr := netip.ParseAddr(entry)
		if prefixErr != nil && addrErr != nil {
			return nil, fmt.Errorf("%w: Authorization.%s[%d] %q is not an IP address or CIDR", domain.ErrConfig, field, i, raw)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Authorize returns an allow or deny statement for the requested resource,
// bound to the configured address condition. Errors are returned as-is and
// never turned into a policy.
func (i *Issuer) Authorize(ctx context.Context, req domain.AuthorizationRequest) (domain.AuthorizerResponse, error) {
	if i == nil {
		return domain.AuthorizerResponse{}, errors.New("issuer is nil")
	}
	if err := ctx.Err(); err != nil {
		observability.RecordAuthorizeError("cancelled")
		return domain.AuthorizerResponse{}, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	if strings.TrimSpace(req.MethodArn) == "" {
		err := fmt.Errorf("%w: methodArn is required", domain.ErrInvalidRequest)
		i.logger.Warn().Err(err).Str("request_id", req.RequestContext.RequestID).Msg("authorization rejected")
		observability.RecordAuthorizeError("invalid_request")
		return domain.AuthorizerResponse{}, err
	}

	input := domain.PolicyInput{
		Resource:  req.MethodArn,
		Principal: i.principal,
		SourceIP:  req.RequestContext.Identity.SourceIP,
		Stage:     req.RequestContext.Stage,
	}
	effect, err := i.engine.Decide(ctx, input)
	if err != nil {
		i.logger.Error().Err(err).Str("resource", req.MethodArn).Msg("effect evaluation failed")
		observability.RecordAuthorizeError("engine")
		return domain.AuthorizerResponse{}, err
	}
	if !effect.Valid() {
		err := fmt.Errorf("effect engine returned unknown effect %q", effect)
		i.logger.Error().Err(err).Str("resource", req.MethodArn).Msg("effect evaluation failed")
		observability.RecordAuthorizeError("engine")
		return domain.AuthorizerResponse{}, err
	}

	resp := domain.AuthorizerResponse{
		PrincipalID: i.principal,
		PolicyDocument: domain.PolicyDocument{
			Version: domain.PolicyVersion,
			Statement: []domain.Statement{{
				Action:    domain.ActionInvoke,
				Effect:    effect,
				Condition: i.condition(),
				Resource:  req.MethodArn,
			}},
		},
		Context: requestContext(req),
	}
	observability.RecordPolicyIssued(string(effect))
	i.logger.Debug().
		Str("resource", req.MethodArn).
		Str("effect", string(effect)).
		Str("source_ip", input.SourceIP).
		Msg("policy issued")
	return resp, nil
}

// condition copies the address lists so callers cannot mutate issuer state.
func (i *Issuer) condition() domain.Condition {
	cond := domain.Condition{
		IPAddress: map[string][]string{domain.ConditionIPKey: append([]string(nil), i.allow...)},
	}
	if len(i.deny) > 0 {
		cond.NotIPAddress = map[string][]string{domain.ConditionIPKey: append([]string(nil), i.deny...)}
	}
	return cond
}

func requestContext(req domain.AuthorizationRequest) map[string]any {
	out := make(map[string]any, 4)
	if v := req.RequestContext.Identity.SourceIP; v != "" {
		out["sourceIp"] = v
	}
	if v := req.RequestContext.RequestID; v != "" {
		out["requestId"] = v
	}
	if v := req.RequestContext.Stage; v != "" {
		out["stage"] = v
	}
	if v := req.Principal; v != "" {
		out["principal"] = v
	}
	return out
}
