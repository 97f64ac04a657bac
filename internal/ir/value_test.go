package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Number(1.5)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Number(1)}
	var _ Value = Object{{Key: "k", Value: String("v")}}
	var _ Value = Function{Name: "f"}
	var _ Value = StyleRef{ClassName: "c"}
}

func TestObject_Get(t *testing.T) {
	obj := Object{{"color", String("red")}, {"margin", Number(0)}}
	v, ok := obj.Get("margin")
	require.True(t, ok)
	assert.Equal(t, Number(0), v)

	_, ok = obj.Get("padding")
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		3:           "3",
		-2:          "-2",
		0.5:         "0.5",
		1.25:        "1.25",
		1e21:        "1e+21",
		math.NaN():  "NaN",
		math.Inf(1): "Infinity",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNumber(in))
	}
}

func TestMarshalValue_KeepsObjectOrder(t *testing.T) {
	obj := Object{
		{"zIndex", Number(2)},
		{"color", String("red")},
		{"nested", Array{Bool(true), Null{}}},
		{"fn", Function{Name: "size"}},
		{"ref", StyleRef{ClassName: "header_1"}},
	}
	b, err := MarshalValue(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"zIndex":2,"color":"red","nested":[true,null],"fn":{"function":"size"},"ref":{"class_name":"header_1"}}`,
		string(b))
}
