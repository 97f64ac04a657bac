package evaluator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/roach88/bakecss/internal/jsast"
)

// helperSource defines the interop globals the CommonJS printer emits.
const helperSource = `
var ` + jsast.HelperInterop + ` = function (mod) {
	if (mod && mod.__esModule) return mod;
	var ns = {};
	if (mod != null && (typeof mod === "object" || typeof mod === "function")) {
		for (var k in mod) {
			if (k !== "default" && Object.prototype.hasOwnProperty.call(mod, k)) ns[k] = mod[k];
		}
	}
	ns["default"] = mod;
	return ns;
};
var ` + jsast.HelperExportStar + ` = function (target, mod) {
	Object.keys(mod).forEach(function (k) {
		if (k === "default" || k === "__esModule" || Object.prototype.hasOwnProperty.call(target, k)) return;
		Object.defineProperty(target, k, { enumerable: true, get: function () { return mod[k]; } });
	});
};
`

func installGlobals(vm *goja.Runtime, nodeEnv string) error {
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }

	env := vm.NewObject()
	if err := env.Set("NODE_ENV", nodeEnv); err != nil {
		return err
	}
	process := vm.NewObject()
	for k, v := range map[string]any{
		"env":      env,
		"platform": "browser",
		"browser":  true,
		"nextTick": noop,
	} {
		if err := process.Set(k, v); err != nil {
			return err
		}
	}

	console := vm.NewObject()
	for name, level := range map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		if err := console.Set(name, consoleFunc(level)); err != nil {
			return err
		}
	}

	globals := map[string]any{
		"process":       process,
		"console":       console,
		"global":        vm.GlobalObject(),
		"globalThis":    vm.GlobalObject(),
		"setTimeout":    noop,
		"setInterval":   noop,
		"clearTimeout":  noop,
		"clearInterval": noop,
	}
	for k, v := range globals {
		if err := vm.Set(k, v); err != nil {
			return err
		}
	}
	_, err := vm.RunString(helperSource)
	return err
}

func consoleFunc(level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		slog.Log(context.Background(), level, strings.Join(parts, " "), "source", "sandbox")
		return goja.Undefined()
	}
}
