package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

// moduleRoot is stripped from caller function names when deriving a module
// name, so "github.com/AltairaLabs/EvalKit/metrics/prometheus.RecordSamples"
// resolves to module "metrics.prometheus".
const moduleRoot = "github.com/AltairaLabs/EvalKit/"

// ModuleHandler wraps an inner slog.Handler with the two behaviours every
// record in the framework gets: per-module level filtering driven by a
// ModuleConfig, and redaction of sensitive data in the message and string
// attributes before anything reaches the inner handler. Build the inner
// handler permissive (slog.LevelDebug); the module configuration decides
// which records pass.
type ModuleHandler struct {
	inner        slog.Handler
	moduleConfig *ModuleConfig
}

// NewModuleHandler creates a module-aware, redacting handler.
func NewModuleHandler(inner slog.Handler, moduleConfig *ModuleConfig) *ModuleHandler {
	return &ModuleHandler{inner: inner, moduleConfig: moduleConfig}
}

// Enabled is a cheap pre-filter: a record can only be emitted if some module
// is configured to log at this level. The authoritative per-module check
// happens in Handle, where the record's PC identifies the caller exactly.
func (h *ModuleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.moduleConfig.MinLevel()
}

// Handle drops records below their module's configured level, redacts the
// message and all string attributes, tags the record with its module, and
// delegates to the inner handler.
func (h *ModuleHandler) Handle(ctx context.Context, r slog.Record) error {
	module := callerModule(r.PC)
	if r.Level < h.moduleConfig.LevelFor(module) {
		return nil
	}

	clean := slog.NewRecord(r.Time, r.Level, RedactSensitiveData(r.Message), r.PC)
	if module != "" {
		clean.AddAttrs(slog.String("logger", module))
	}
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs implements slog.Handler.
func (h *ModuleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ModuleHandler{inner: h.inner.WithAttrs(attrs), moduleConfig: h.moduleConfig}
}

// WithGroup implements slog.Handler.
func (h *ModuleHandler) WithGroup(name string) slog.Handler {
	return &ModuleHandler{inner: h.inner.WithGroup(name), moduleConfig: h.moduleConfig}
}

// redactAttr applies RedactSensitiveData to string-valued attributes,
// recursing into groups. Errors are flattened to redacted strings since
// their messages can carry prompt text.
func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, RedactSensitiveData(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		redacted := make([]any, 0, len(members))
		for _, member := range members {
			redacted = append(redacted, redactAttr(member))
		}
		return slog.Group(a.Key, redacted...)
	default:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, RedactSensitiveData(err.Error()))
		}
		return a
	}
}

// callerModule derives the dotted module name from the record's program
// counter. Frames outside this module's packages yield "".
func callerModule(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	return moduleFromFunction(frame.Function)
}

// moduleFromFunction turns a fully qualified function name into a module
// name: strip the module root, keep the package path, dot the separators.
func moduleFromFunction(function string) string {
	if !strings.HasPrefix(function, moduleRoot) {
		return ""
	}
	pkgPath := strings.TrimPrefix(function, moduleRoot)
	slash := strings.LastIndex(pkgPath, "/")
	dot := strings.Index(pkgPath[slash+1:], ".")
	if dot >= 0 {
		pkgPath = pkgPath[:slash+1+dot]
	}
	return strings.ReplaceAll(pkgPath, "/", ".")
}
