package cel

import (
	"testing"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/stretchr/testify/assert"
)

func TestConvertCELValue(t *testing.T) {
	adapter := types.DefaultTypeAdapter

	t.Run("internal list representation", func(t *testing.T) {
		val := types.NewRefValList(adapter, []ref.Val{
			types.String("game:base"),
			types.Int(42),
		})
		assert.Equal(t, []any{"game:base", int64(42)}, ConvertCELValue(val))
	})

	t.Run("native-backed list", func(t *testing.T) {
		val := adapter.NativeToValue([]any{"a", "b"})
		assert.Equal(t, []any{"a", "b"}, ConvertCELValue(val))
	})

	t.Run("internal map representation", func(t *testing.T) {
		val := types.NewRefValMap(adapter, map[ref.Val]ref.Val{
			types.String("tier"): types.String("founder"),
		})
		assert.Equal(t, map[string]any{"tier": "founder"}, ConvertCELValue(val))
	})

	t.Run("nested list inside map", func(t *testing.T) {
		val := types.NewRefValMap(adapter, map[ref.Val]ref.Val{
			types.String("tags"): types.NewRefValList(adapter, []ref.Val{types.String("x")}),
		})
		assert.Equal(t, map[string]any{"tags": []any{"x"}}, ConvertCELValue(val))
	})

	t.Run("scalars pass through", func(t *testing.T) {
		assert.Equal(t, "plain", ConvertCELValue(types.String("plain")))
		assert.Equal(t, true, ConvertCELValue(types.Bool(true)))
	})
}
