package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakecss/internal/ir"
)

func TestToCSS(t *testing.T) {
	cases := []struct {
		name string
		in   ir.Value
		want string
	}{
		{"string", ir.String("red"), "red"},
		{"integer", ir.Number(3), "3"},
		{"fraction", ir.Number(0.5), "0.5"},
		{"null", ir.Null{}, ""},
		{"bool", ir.Bool(false), ""},
		{"ref", ir.StyleRef{ClassName: "btn_1"}, ".btn_1"},
		{"array", ir.Array{ir.String("a"), ir.Number(1)}, "a1"},
		{"object", ir.Object{{"backgroundColor", ir.String("red")}, {"zIndex", ir.Number(2)}}, "background-color: red; z-index: 2; "},
		{"nested", ir.Object{{"&:hover", ir.Object{{"color", ir.String("blue")}}}}, "&:hover { color: blue; } "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToCSS(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToCSS_FunctionInObjectFails(t *testing.T) {
	_, err := ToCSS(ir.Object{{"color", ir.Function{Name: "pick"}}})
	assert.ErrorContains(t, err, "pick")
}

func TestKebab(t *testing.T) {
	assert.Equal(t, "background-color", Kebab("backgroundColor"))
	assert.Equal(t, "-webkit-transition", Kebab("WebkitTransition"))
	assert.Equal(t, "-ms-transform", Kebab("msTransform"))
	assert.Equal(t, "--brandColor", Kebab("--brandColor"))
	assert.Equal(t, "color", Kebab("color"))
}
