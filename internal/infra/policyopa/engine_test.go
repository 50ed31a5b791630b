package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
)

const stageBundle = `package apiregistry.authz

default effect := "Allow"

effect := "Deny" {
	input.stage == "blocked"
}
`

func basePolicyInput() domain.PolicyInput {
	return domain.PolicyInput{
		Resource:  "arn:aws:execute-api:us-east-1:123456789012:abc/dev/GET/services",
		Principal: domain.DefaultPrincipal,
		SourceIP:  "10.0.0.5",
		Stage:     "dev",
	}
}

func writeBundle(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestDefaultEngineAllows(t *testing.T) {
	engine, err := NewDefaultEngine(context.Background())
	if err != nil {
		t.Fatalf("default engine: %v", err)
	}
	effect, err := engine.Decide(context.Background(), basePolicyInput())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if effect != domain.EffectAllow {
		t.Fatalf("expected Allow, got %q", effect)
	}
	if engine.BundleHash() == "" {
		t.Fatalf("expected bundle hash to be set")
	}
}

func TestEngineFromConfigWithoutBundleUsesDefault(t *testing.T) {
	engine, err := NewEngineFromConfig(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	def, err := NewDefaultEngine(context.Background())
	if err != nil {
		t.Fatalf("default engine: %v", err)
	}
	if engine.BundleHash() != def.BundleHash() {
		t.Fatalf("expected default bundle hash")
	}
}

func TestBundleEngineDecides(t *testing.T) {
	dir := writeBundle(t, map[string]string{"authz.rego": stageBundle})
	engine, err := NewEngineFromBundlePath(context.Background(), dir)
	if err != nil {
		t.Fatalf("bundle engine: %v", err)
	}

	tests := []struct {
		name  string
		stage string
		want  domain.Effect
	}{
		{name: "regular stage", stage: "dev", want: domain.EffectAllow},
		{name: "blocked stage", stage: "blocked", want: domain.EffectDeny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := basePolicyInput()
			input.Stage = tt.stage
			got, err := engine.Decide(context.Background(), input)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBundleEngineCIDRDeny(t *testing.T) {
	dir := writeBundle(t, map[string]string{"authz.rego": `package apiregistry.authz

default effect := "Allow"

effect := "Deny" {
	net.cidr_contains("192.168.0.0/16", input.source_ip)
}
`})
	engine, err := NewEngineFromBundlePath(context.Background(), dir)
	if err != nil {
		t.Fatalf("bundle engine: %v", err)
	}
	input := basePolicyInput()
	input.SourceIP = "192.168.3.4"
	got, err := engine.Decide(context.Background(), input)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got != domain.EffectDeny {
		t.Fatalf("expected Deny, got %q", got)
	}
}

func TestBundleEngineRejectsForbiddenBuiltins(t *testing.T) {
	dir := writeBundle(t, map[string]string{"authz.rego": `package apiregistry.authz

default effect := "Allow"

effect := "Deny" {
	time.now_ns() > 0
}
`})
	if _, err := NewEngineFromBundlePath(context.Background(), dir); err == nil {
		t.Fatalf("expected forbidden builtin to be rejected")
	}
}

func TestDecideRejectsMalformedEffects(t *testing.T) {
	tests := []struct {
		name   string
		module string
	}{
		{
			name: "undefined",
			module: `package apiregistry.authz

effect := "Allow" {
	input.stage == "never"
}
`,
		},
		{
			name: "unknown effect",
			module: `package apiregistry.authz

default effect := "Maybe"
`,
		},
		{
			name: "not a string",
			module: `package apiregistry.authz

default effect := true
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeBundle(t, map[string]string{"authz.rego": tt.module})
			engine, err := NewEngineFromBundlePath(context.Background(), dir)
			if err != nil {
				t.Fatalf("bundle engine: %v", err)
			}
			effect, err := engine.Decide(context.Background(), basePolicyInput())
			if err == nil {
				t.Fatalf("expected error, got effect %q", effect)
			}
		})
	}
}

func TestNilEngineDecide(t *testing.T) {
	var engine *Engine
	if _, err := engine.Decide(context.Background(), basePolicyInput()); err == nil {
		t.Fatalf("expected error for nil engine")
	}
}

func TestBundleHashIgnoresUnrelatedFiles(t *testing.T) {
	first := writeBundle(t, map[string]string{"authz.rego": stageBundle})
	second := writeBundle(t, map[string]string{
		"authz.rego":     stageBundle,
		"README.md":      "notes",
		".hidden/x.rego": "package hidden",
	})
	a, err := ComputeBundleHashFromPath(first)
	if err != nil {
		t.Fatalf("hash first: %v", err)
	}
	b, err := ComputeBundleHashFromPath(second)
	if err != nil {
		t.Fatalf("hash second: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal hashes, got %s and %s", a, b)
	}

	changed := writeBundle(t, map[string]string{"authz.rego": strings.Replace(stageBundle, "blocked", "closed", 1)})
	c, err := ComputeBundleHashFromPath(changed)
	if err != nil {
		t.Fatalf("hash changed: %v", err)
	}
	if c == a {
		t.Fatalf("expected hash to change with content")
	}
}
