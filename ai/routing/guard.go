package routing

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
)

// guard is a compiled route condition.
type guard struct {
	expr    string
	program cel.Program
}

func newGuardEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("features", cel.MapType(cel.StringType, cel.BoolType)),
	)
}

// compileGuard type-checks a boolean expression over features.
func compileGuard(env *cel.Env, expr string) (*guard, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid route condition %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("route condition %q must be boolean, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build route condition %q: %w", expr, err)
	}
	return &guard{expr: expr, program: program}, nil
}

// allows evaluates the guard. A feature missing from the map, or any other
// evaluation error, counts as false.
func (g *guard) allows(features Features) bool {
	if g == nil {
		return true
	}
	if features == nil {
		features = Features{}
	}
	out, _, err := g.program.Eval(map[string]any{"features": map[string]bool(features)})
	if err != nil {
		slog.Debug("routing: condition not satisfied", "condition", g.expr, "error", err)
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}
