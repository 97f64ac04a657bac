package evaluator

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/processor"
)

const maxDepth = 32

// export converts a runtime value. Getters that throw surface as an error.
func (c *Context) export(v goja.Value) (out ir.Value, err error) {
	if ex := c.vm.Try(func() { out = c.convert(v, 0) }); ex != nil {
		return nil, ex
	}
	return out, nil
}

func (c *Context) convert(v goja.Value, depth int) ir.Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ir.Null{}
	}
	if _, ok := goja.AssertFunction(v); ok {
		name := ""
		if obj, ok := v.(*goja.Object); ok {
			if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
				name = n.String()
			}
		}
		return ir.Function{Name: name}
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		switch x := v.Export().(type) {
		case string:
			return ir.String(x)
		case bool:
			return ir.Bool(x)
		case int64:
			return ir.Number(float64(x))
		case float64:
			return ir.Number(x)
		default:
			return ir.String(v.String())
		}
	}
	if depth >= maxDepth {
		return ir.Null{}
	}

	if meta, ok := obj.Get(processor.MetaKey).(*goja.Object); ok {
		if cls := meta.Get("className"); cls != nil && !goja.IsUndefined(cls) {
			return ir.StyleRef{ClassName: cls.String()}
		}
	}

	switch obj.ClassName() {
	case "Array":
		n := obj.Get("length").ToInteger()
		out := make(ir.Array, 0, n)
		for i := int64(0); i < n; i++ {
			out = append(out, c.convert(obj.Get(strconv.FormatInt(i, 10)), depth+1))
		}
		return out
	case "Number":
		return ir.Number(obj.ToFloat())
	case "String":
		return ir.String(obj.String())
	case "Boolean":
		return ir.Bool(obj.ToBoolean())
	case "Date":
		return ir.String(obj.String())
	}

	keys := obj.Keys()
	out := make(ir.Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, ir.Pair{Key: k, Value: c.convert(obj.Get(k), depth+1)})
	}
	return out
}
