package policyopa

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const effectQuery = "data.apiregistry.authz.effect"

//go:embed default.rego
var defaultModule string

// Engine evaluates a rego module for the statement effect. An undefined or
// malformed result is an error; the engine has no fallback effect.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

func NewEngineFromConfig(ctx context.Context, cfg config.Config) (*Engine, error) {
	if cfg.Policy.BundlePath == "" {
		return NewDefaultEngine(ctx)
	}
	return NewEngineFromBundlePath(ctx, cfg.Policy.BundlePath)
}

// NewDefaultEngine uses the embedded module, which always allows.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return prepare(ctx, sha256Hex([]byte(defaultModule)), rego.Module("default.rego", defaultModule))
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("hash policy bundle: %w", err)
	}
	return prepare(ctx, bundleHash, rego.Load([]string{bundlePath}, nil))
}

func prepare(ctx context.Context, bundleHash string, source func(*rego.Rego)) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(effectQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		source,
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Decide(ctx context.Context, input domain.PolicyInput) (domain.Effect, error) {
	if e == nil {
		return "", errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", errors.New("policy produced no effect")
	}
	raw, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy effect must be a string, got %T", results[0].Expressions[0].Value)
	}
	effect := domain.Effect(raw)
	if !effect.Valid() {
		return "", fmt.Errorf("policy effect %q is neither Allow nor Deny", raw)
	}
	return effect, nil
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; !ok {
				forbidden[name] = struct{}{}
			}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
