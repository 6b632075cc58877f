// Package jsonnet ties the pipeline together: lex/parse the entry file
// (resolving imports through an injectable hook), desugar to Core,
// evaluate with the std library bound into the root environment, and
// manifest the result to a JSON tree.
package jsonnet

import (
	"context"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/core"
	"github.com/fabvit86/jsonnet-go/eval"
	"github.com/fabvit86/jsonnet-go/internal/econf"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
	"github.com/fabvit86/jsonnet-go/manifest"
	"github.com/fabvit86/jsonnet-go/parser"
	"github.com/fabvit86/jsonnet-go/stdlib"
)

// ImportHook resolves an import expression; see parser.ImportHook.
type ImportHook = parser.ImportHook

// Option configures an evaluation run; see econf.Option.
type Option = econf.Option

var (
	WithMaxCallDepth   = econf.WithMaxCallDepth
	WithMaxImportDepth = econf.WithMaxImportDepth
)

// Evaluate runs the full pipeline over source (the entry file named
// path, used to resolve relative imports and in error spans) and
// returns the manifested JSON tree: nil, bool, float64, string,
// []any, or map[string]any.
//
// ctx is polled at each thunk-force boundary, so a long-running
// evaluation can be cancelled between reductions; it is not polled
// mid-reduction.
func Evaluate(ctx context.Context, path, source string, hook ImportHook, opts ...Option) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = jerr.Newf(jerr.RuntimeError, ast.Span{File: path}, "internal error: %v", r)
			result = nil
		}
	}()

	cfg := econf.New(opts...)

	surface, err := parser.Parse(path, source, hook, cfg.MaxImportDepth)
	if err != nil {
		return nil, err
	}
	desugared := core.Desugar(surface)

	env := eval.NewEnv(nil)
	env.Bind("std", eval.Resolved(stdlib.Root()))

	c := eval.NewRootCtx(env, cfg)
	c = c.WithContext(ctx)

	v, err := eval.Eval(desugared, c)
	if err != nil {
		return nil, err
	}

	return manifest.ToAny(v)
}
