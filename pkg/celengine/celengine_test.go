package celengine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestCompileAndMatch(t *testing.T) {
	attrs := map[string]any{
		"name":          "Rina",
		"inactive_days": int64(3),
		"today_total":   int64(10),
		"active":        false,
		"ratio":         0.4,
	}

	env, err := GetOrBuildEnv(attrs)
	require.NoError(t, err)

	prg, err := Compile(env, `inactive_days > 1 && today_total < 25`)
	require.NoError(t, err)
	ok, err := Matches(prg, attrs)
	require.NoError(t, err)
	require.True(t, ok)

	prg, err = Compile(env, `name.startsWith("Ri") && ratio > 0.5`)
	require.NoError(t, err)
	ok, err = Matches(prg, attrs)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileRejectsNonBool(t *testing.T) {
	env, err := GetOrBuildEnv(map[string]any{"today_total": int64(1)})
	require.NoError(t, err)

	_, err = Compile(env, `today_total + 1`)
	require.Error(t, err)

	require.Error(t, ValidateExpression(env, `unknown_field > 1`))
	require.Error(t, ValidateExpression(env, `today_total + 1`))
	require.NoError(t, ValidateExpression(env, `today_total > 1`))
}

func TestEnvCacheKeyedByShape(t *testing.T) {
	a, err := GetOrBuildEnv(map[string]any{"x": int64(1)})
	require.NoError(t, err)
	b, err := GetOrBuildEnv(map[string]any{"x": int64(5)})
	require.NoError(t, err)
	c, err := GetOrBuildEnv(map[string]any{"x": "str"})
	require.NoError(t, err)

	require.Same(t, a, b)
	require.NotSame(t, a, c)
}
