package labels

import (
	"fmt"

	"go.uber.org/zap"
)

// LayerSet is the part of a style context the rewriter needs
type LayerSet interface {
	Layers() []string
	LayerDatasourceParams(layer string) (map[string]string, error)
	SetLayerDatasource(layer string, params map[string]string) error
}

// Rewriter injects the label expression into every layer that asks for it
type Rewriter struct {
	log *zap.Logger
}

// NewRewriter creates a rewriter. A nil logger discards output.
func NewRewriter(log *zap.Logger) *Rewriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{log: log}
}

// Rewrite updates each layer whose datasource declares a labelhint and
// rebuilds its datasource. An empty spec leaves the layers untouched.
func (rw *Rewriter) Rewrite(ls LayerSet, spec string) error {
	if spec == "" {
		return nil
	}
	for _, layer := range ls.Layers() {
		current, err := ls.LayerDatasourceParams(layer)
		if err != nil {
			return fmt.Errorf("failed to read datasource of layer %q: %w", layer, err)
		}
		hint := current[ParamHint]
		if hint == "" {
			continue
		}
		expr, ok := Build(spec, hint)
		if !ok {
			return nil
		}

		params := make(map[string]string, len(current)+1)
		for k, v := range current {
			params[k] = v
		}
		params[ParamLanguages] = spec
		if table := params[ParamTable]; table != "" {
			var n int
			params[ParamTable], n = ReplaceNameColumn(table, expr.SQL())
			if n == 0 {
				rw.log.Warn("label query has no name column",
					zap.String("layer", layer),
					zap.String("table", table))
			}
		}

		rw.log.Debug("label query",
			zap.String("layer", layer),
			zap.String("labelhint", hint),
			zap.String("table", params[ParamTable]))

		if err := ls.SetLayerDatasource(layer, params); err != nil {
			return fmt.Errorf("failed to rebuild datasource of layer %q: %w", layer, err)
		}
	}
	return nil
}
