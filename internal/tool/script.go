package tool

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"zenai/internal/domain"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// scriptHandler runs an interpreted main.go. The script must be package main
// and define Execute with one of these signatures:
//
//	func Execute(args string) map[string]interface{}
//	func Execute(args string) (map[string]interface{}, error)
//	func Execute(args string) (string, error)
type scriptHandler struct {
	name   string
	sem    chan struct{} // holds a token while the interpreter runs
	logger *slog.Logger
	call   func(args string) (any, error)
}

func newScriptHandler(name string, logger *slog.Logger) *scriptHandler {
	return &scriptHandler{name: name, sem: make(chan struct{}, 1), logger: logger}
}

func loadScript(fsys fs.FS, unit string, logger *slog.Logger) (h *scriptHandler, err error) {
	src, err := fs.ReadFile(fsys, unit+"/"+scriptFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", scriptFile, err)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("interpreter panic: %v", p)
		}
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", scriptFile, err)
	}
	v, err := i.Eval("main.Execute")
	if err != nil {
		return nil, fmt.Errorf("function Execute not found: %w", err)
	}

	h = newScriptHandler(unit, logger)
	switch fn := v.Interface().(type) {
	case func(string) map[string]interface{}:
		h.call = func(args string) (any, error) { return fn(args), nil }
	case func(string) (map[string]interface{}, error):
		h.call = func(args string) (any, error) { return fn(args) }
	case func(string) (string, error):
		h.call = func(args string) (any, error) {
			out, err := fn(args)
			if err != nil {
				return nil, err
			}
			return domain.OK(out), nil
		}
	default:
		return nil, fmt.Errorf("function Execute has unsupported signature %T", fn)
	}
	logger.Debug("interpreted tool ready", "tool", unit)
	return h, nil
}

type scriptOutcome struct {
	value any
	err   error
}

// Execute runs the script with calls serialized. A call that outlives ctx
// keeps the interpreter busy until it returns; later callers wait for it
// only as long as their own ctx allows.
func (h *scriptHandler) Execute(ctx context.Context, args string) (any, error) {
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: still running a previous call: %w", h.name, ctx.Err())
	}

	done := make(chan scriptOutcome, 1)
	go func() {
		defer func() { <-h.sem }()
		defer func() {
			if p := recover(); p != nil {
				done <- scriptOutcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := h.call(args)
		done <- scriptOutcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		h.logger.Warn("interpreted tool abandoned, still running", "tool", h.name, "err", ctx.Err())
		return nil, fmt.Errorf("%s: %w", h.name, ctx.Err())
	}
}
