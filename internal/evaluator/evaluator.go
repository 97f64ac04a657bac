// Package evaluator runs shaken CommonJS modules in a goja sandbox and
// computes the build-time values of style interpolations.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/dop251/goja"

	"github.com/roach88/bakecss/internal/ir"
)

// Module is code the sandbox can run for a path.
type Module struct {
	Path string
	Code string
}

// Loader supplies the module a require call refers to.
type Loader interface {
	Load(ctx context.Context, importer, specifier string) (Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, importer, specifier string) (Module, error)

func (f LoaderFunc) Load(ctx context.Context, importer, specifier string) (Module, error) {
	return f(ctx, importer, specifier)
}

// Options configure a Context.
type Options struct {
	Loader  Loader
	NodeEnv string
}

type moduleKey struct {
	path string
	hash string
}

type module struct {
	path   string
	object *goja.Object
	done   bool
}

// Context is one sandbox and its module cache. It is created per
// compilation run; Close drops every module it evaluated.
type Context struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	loader  Loader
	modules map[moduleKey]*module

	// active holds the preval thunks being computed, as "path#key".
	active []string

	// ctx is the context of the evaluation in progress.
	ctx context.Context
}

// New creates a sandbox with the host globals installed.
func New(opts Options) (*Context, error) {
	if opts.NodeEnv == "" {
		opts.NodeEnv = "production"
	}
	c := &Context{
		vm:      goja.New(),
		loader:  opts.Loader,
		modules: make(map[moduleKey]*module),
		ctx:     context.Background(),
	}
	if err := installGlobals(c.vm, opts.NodeEnv); err != nil {
		return nil, fmt.Errorf("install sandbox globals: %w", err)
	}
	return c, nil
}

// Close releases the runtime and every cached module.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vm = nil
	c.modules = nil
	c.active = nil
}

// Preval holds the outcome of every thunk of a preval export.
type Preval map[string]Outcome

// Outcome is a computed value or the error captured while computing it.
type Outcome struct {
	Value ir.Value
	Err   error
}

// Lookup returns the value for key, or the error captured for it.
func (p Preval) Lookup(key string) (ir.Value, error) {
	o, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("no preval value for %s", key)
	}
	return o.Value, o.Err
}

// EvalPreval runs the module at file and calls each thunk of its preval
// export in isolation. A thunk that throws yields an *EvalError or
// *EvalCycleError outcome without stopping the others. The returned error
// is reserved for failures of the module itself.
func (c *Context) EvalPreval(ctx context.Context, file, code string) (Preval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vm == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := c.watch(ctx)
	defer stop()

	exports, err := c.run(file, code)
	if err != nil {
		return nil, err
	}
	obj, ok := exports.Get(ir.PrevalExport).(*goja.Object)
	if !ok {
		return nil, nil
	}
	out := make(Preval)
	for _, key := range obj.Keys() {
		v := obj.Get(key)
		if fn, ok := goja.AssertFunction(v); ok {
			var err error
			if v, err = fn(goja.Undefined()); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				out[key] = Outcome{Err: c.captured(file, key, err)}
				continue
			}
		}
		val, err := c.export(v)
		if err != nil {
			out[key] = Outcome{Err: c.captured(file, key, err)}
			continue
		}
		out[key] = Outcome{Value: val}
	}
	slog.Debug("preval evaluated", "file", file, "values", len(out))
	return out, nil
}

// Exports runs the module at file and returns its exports as values.
func (c *Context) Exports(ctx context.Context, file, code string) (ir.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vm == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := c.watch(ctx)
	defer stop()

	exports, err := c.run(file, code)
	if err != nil {
		return nil, err
	}
	val, err := c.export(exports)
	if err != nil {
		return nil, c.captured(file, "", err)
	}
	obj, _ := val.(ir.Object)
	return obj, nil
}

// watch interrupts the runtime when ctx is cancelled.
func (c *Context) watch(ctx context.Context) func() {
	c.ctx = ctx
	vm := c.vm
	vm.ClearInterrupt()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	return func() {
		stop()
		vm.ClearInterrupt()
		c.ctx = context.Background()
	}
}

// run evaluates a module once per (path, code) and returns its exports.
func (c *Context) run(file, code string) (*goja.Object, error) {
	key := moduleKey{path: file, hash: ir.ContentHash(code)}
	if m, ok := c.modules[key]; ok {
		return c.exportsOf(m), nil
	}

	src := "(function (exports, require, module, __filename, __dirname) {" + code + "\n})"
	prg, err := goja.Compile(file, src, false)
	if err != nil {
		return nil, &EvalError{File: file, Message: err.Error(), Err: err}
	}
	wrapper, err := c.vm.RunProgram(prg)
	if err != nil {
		return nil, c.captured(file, "", err)
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, &EvalError{File: file, Message: "module wrapper is not a function"}
	}

	m := &module{path: file, object: c.vm.NewObject()}
	exports := c.vm.NewObject()
	if err := m.object.Set("exports", exports); err != nil {
		return nil, err
	}
	c.modules[key] = m

	require := c.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return c.require(file, call.Argument(0).String())
	})
	_, err = fn(goja.Undefined(), exports, require, m.object, c.vm.ToValue(file), c.vm.ToValue(path.Dir(file)))
	if err != nil {
		delete(c.modules, key)
		return nil, c.captured(file, "", err)
	}
	m.done = true
	out := c.exportsOf(m)
	c.guardPreval(file, out)
	slog.Debug("module evaluated", "file", file)
	return out, nil
}

func (c *Context) exportsOf(m *module) *goja.Object {
	if obj, ok := m.object.Get("exports").(*goja.Object); ok {
		return obj
	}
	return c.vm.NewObject()
}

// require loads a dependency through the Loader. A module that is still
// initialising returns its exports so far.
func (c *Context) require(importer, specifier string) goja.Value {
	if c.loader == nil {
		panic(c.vm.NewGoError(fmt.Errorf("cannot require %q from %s: no loader", specifier, importer)))
	}
	mod, err := c.loader.Load(c.ctx, importer, specifier)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	key := moduleKey{path: mod.Path, hash: ir.ContentHash(mod.Code)}
	if m, ok := c.modules[key]; ok {
		if !m.done {
			slog.Debug("cyclic require returns partial exports", "file", mod.Path, "importer", importer)
		}
		return c.exportsOf(m)
	}
	exports, err := c.run(mod.Path, mod.Code)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return exports
}

// guardPreval wraps each preval thunk so a thunk reached again while it is
// being computed fails with an *EvalCycleError instead of recursing.
func (c *Context) guardPreval(file string, exports *goja.Object) {
	obj, ok := exports.Get(ir.PrevalExport).(*goja.Object)
	if !ok {
		return
	}
	for _, key := range obj.Keys() {
		fn, ok := goja.AssertFunction(obj.Get(key))
		if !ok {
			continue
		}
		id := file + "#" + key
		guarded := func(call goja.FunctionCall) goja.Value {
			for _, a := range c.active {
				if a == id {
					chain := append(append([]string(nil), c.active...), id)
					panic(c.vm.NewGoError(&EvalCycleError{File: file, Key: key, Chain: chain}))
				}
			}
			c.active = append(c.active, id)
			defer func() { c.active = c.active[:len(c.active)-1] }()
			v, err := fn(call.This, call.Arguments...)
			if err != nil {
				panic(rethrow(err))
			}
			return v
		}
		_ = obj.Set(key, guarded)
	}
}

// rethrow turns an error returned by a goja call back into a panic value
// the runtime treats as a throw. Interrupts stay uncatchable.
func rethrow(err error) any {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex
	}
	return err
}

// captured converts a runtime error into the error reported for file/key.
func (c *Context) captured(file, key string, err error) error {
	if cerr := c.ctx.Err(); cerr != nil {
		return cerr
	}
	var cycle *EvalCycleError
	if errors.As(err, &cycle) {
		return cycle
	}
	var eval *EvalError
	if errors.As(err, &eval) {
		return eval
	}
	msg := err.Error()
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		msg = ex.Value().String()
	}
	return &EvalError{File: file, Key: key, Message: msg, Err: err}
}
