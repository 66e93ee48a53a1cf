package celengine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
)

var envCache = sync.Map{}

// GetOrBuildEnv returns a CEL environment declaring one variable per
// attribute. Environments are cached by attribute names and types.
func GetOrBuildEnv(attrs map[string]any) (*cel.Env, error) {
	key := envKey(attrs)
	if v, ok := envCache.Load(key); ok {
		return v.(*cel.Env), nil
	}

	env, err := BuildCelEnvFromAttributes(attrs)
	if err == nil {
		envCache.Store(key, env)
	}

	return env, err
}

func envKey(attrs map[string]any) string {
	names := make([]string, 0, len(attrs))
	for name, val := range attrs {
		names = append(names, fmt.Sprintf("%s:%T", name, val))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func BuildCelEnvFromAttributes(attrs map[string]any) (*cel.Env, error) {
	variables := make([]cel.EnvOption, 0, len(attrs))

	for key, val := range attrs {
		switch val.(type) {
		case string:
			variables = append(variables, cel.Variable(key, cel.StringType))
		case int, int32, int64:
			variables = append(variables, cel.Variable(key, cel.IntType))
		case float32, float64:
			variables = append(variables, cel.Variable(key, cel.DoubleType))
		case bool:
			variables = append(variables, cel.Variable(key, cel.BoolType))
		case time.Time:
			variables = append(variables, cel.Variable(key, cel.TimestampType))
		case []string:
			variables = append(variables, cel.Variable(key, cel.ListType(cel.StringType)))
		case map[string]any:
			variables = append(variables, cel.Variable(key, cel.MapType(cel.StringType, cel.DynType)))
		default:
			zap.L().Debug("unhandled cel attribute type", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", val)))
			variables = append(variables, cel.Variable(key, cel.DynType))
		}
	}

	return cel.NewEnv(variables...)
}

// ValidateExpression reports whether expr compiles against env to a bool.
func ValidateExpression(env *cel.Env, expr string) error {
	_, err := Compile(env, expr)
	return err
}

// Compile checks that expr yields a bool and returns its program, so one
// expression can be evaluated against many attribute sets.
func Compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}
	return env.Program(ast)
}

func Matches(prg cel.Program, attrs map[string]any) (bool, error) {
	out, _, err := prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}
	return b, nil
}
