package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins excludes anything with side effects or outside input
// (http.send, time.now_ns, opa.runtime, rand.*) so that a decision depends only
// on the request.
var allowedBuiltins = map[string]struct{}{
	"assign":            {},
	"concat":            {},
	"contains":          {},
	"count":             {},
	"endswith":          {},
	"eq":                {},
	"equal":             {},
	"glob.match":        {},
	"lower":             {},
	"neq":               {},
	"net.cidr_contains": {},
	"object.get":        {},
	"regex.match":       {},
	"split":             {},
	"sprintf":           {},
	"startswith":        {},
	"substring":         {},
	"trim":              {},
	"trim_space":        {},
	"upper":             {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
