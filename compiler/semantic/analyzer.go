package semantic

import (
	"go.uber.org/zap"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/inference"
	"github.com/quarreldb/quarrel/schema"
)

// Options configures one compilation.
type Options struct {
	// Anchors pre-binds named path roots (e.g. __subject__) to schema
	// types before compilation starts.
	Anchors map[string]schema.Type
	// ModAliases seeds the module alias table of the outermost context.
	ModAliases map[string]string
	// ResultViewName, when set, registers the top-level result view type
	// under this name in the output.
	ResultViewName schema.Name
	// ImplicitIDInShapes inserts the id pointer into exposed projection
	// shapes that do not mention it.
	ImplicitIDInShapes bool
	Logger             *zap.Logger
	// Inferrer overrides the structural fallback inferencer.
	Inferrer inference.Inferrer
}

// translator drives the AST to IR translation of one compilation.
type translator struct {
	env *environment
	// baseCatalog is the embedder-supplied catalog, kept aside from the
	// overlay for suggestion lookups that enumerate names.
	baseCatalog schema.Catalog
}

// Analyze compiles one expression or statement into its IR Statement.
// Errors abort the whole compilation; no partial output is produced.
func Analyze(cat schema.Catalog, root ast.Expr, opts Options) (*ir.Statement, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	inferrer := opts.Inferrer
	if inferrer == nil {
		inferrer = inference.Structural{}
	}
	overlay := schema.NewOverlay(cat)
	env := &environment{
		catalog:    overlay,
		resolver:   schema.NewResolver(overlay),
		inferrer:   inferrer,
		scope:      ir.NewScopeTree(),
		params:     make(map[string]schema.Type),
		views:      make(map[schema.Name]schema.Type),
		computed:   make(map[*schema.Pointer]*ir.ComputedPtrInfo),
		extraFence: make(map[ast.Node]bool),
		logger:     opts.Logger,
		opts:       opts,
	}
	t := &translator{env: env, baseCatalog: cat}

	ctx := rootContext(env)
	ctx.exposed = true
	ctx.resultViewName = opts.ResultViewName
	for alias, module := range opts.ModAliases {
		ctx.modAliases[alias] = module
	}
	for name, typ := range opts.Anchors {
		s := t.newTypeRootSet(ctx, typ, nil)
		s.Anchor = name
		ctx.anchors[name] = s
	}

	result, err := t.semExpr(ctx, root)
	if err != nil {
		return nil, err
	}
	// Deferred completions (derived pointer cardinalities) run once the
	// whole statement has been seen.
	for _, fn := range env.pending {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return &ir.Statement{
		Set:          result,
		Params:       env.params,
		Views:        env.views,
		ComputedPtrs: env.computed,
		ScopeTree:    env.scope,
		Cardinality:  inferrer.InferCardinality(result, env.scope.VisibleBoundPaths(ctx.scope)),
	}, nil
}
