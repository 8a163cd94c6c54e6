// Package pipeline runs the full reconstruction pipeline end to end over
// one parsed program, stage by stage, and is the one place that wires
// internal/stmtgraph through internal/structurer together. The CLI calls
// this instead of the stage packages directly; internal/astcache is
// consulted from here (RunCached), not the other way round.
package pipeline

import (
	"fmt"

	"github.com/cobolsharp/cobolsharp-go/internal/astcache"
	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/config"
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
	"github.com/cobolsharp/cobolsharp-go/internal/ir"
	"github.com/cobolsharp/cobolsharp-go/internal/log"
	"github.com/cobolsharp/cobolsharp-go/internal/loopfinder"
	"github.com/cobolsharp/cobolsharp-go/internal/reach"
	"github.com/cobolsharp/cobolsharp-go/internal/scopegraph"
	"github.com/cobolsharp/cobolsharp-go/internal/stmtgraph"
	"github.com/cobolsharp/cobolsharp-go/internal/structgraph"
	"github.com/cobolsharp/cobolsharp-go/internal/structurer"
)

// StageGraphs carries the intermediate graph.Graph at every named stage
// for one section, so dotgraph/debug output can render any of them
// (spec.md §6's full_stmt_graph / stmt_graph / cobol_graph / acyclic_graph
// / scope_graph output formats).
type StageGraphs struct {
	FullStmtGraph *graph.Graph // before reachability pruning
	StmtGraph     *graph.Graph // after pruning
	CobolGraph    *graph.Graph // after structgraph collapse
	AcyclicGraph  *graph.Graph // the CobolGraph itself; loop data lives in Loops, not on nodes
	Loops         *loopfinder.Result
	Scopes        *scopegraph.Scopes
}

// SectionResult is everything produced for one section.
type SectionResult struct {
	Name   string
	Stages StageGraphs
	Tree   *ir.Tree
}

// Run executes every pipeline stage for every section in prog, returning
// one SectionResult per section in source order. A fatal diagnostic from
// any stage aborts the whole run; warnings and info accumulate on bag.
func Run(prog *cobol.Program, cfg *config.Config, bag *diag.Bag) ([]*SectionResult, error) {
	return run(prog, cfg, bag, nil, astcache.Key{})
}

// RunCached behaves like Run, but consults cache first for every section,
// keyed by sourceKey.Section (sourceKey's SourcePath/ModTime are shared
// across sections, its Section field is overwritten per section). A
// section found in cache skips every stage past the statement graph
// builder; a section built fresh is stored back into cache before
// returning. cache may be nil, in which case this is exactly Run.
func RunCached(prog *cobol.Program, cfg *config.Config, bag *diag.Bag, cache *astcache.Cache, sourceKey astcache.Key) ([]*SectionResult, error) {
	return run(prog, cfg, bag, cache, sourceKey)
}

func run(prog *cobol.Program, cfg *config.Config, bag *diag.Bag, cache *astcache.Cache, sourceKey astcache.Key) ([]*SectionResult, error) {
	built, err := stmtgraph.Build(prog, bag)
	if err != nil {
		return nil, fmt.Errorf("building statement graph: %w", err)
	}
	if cfg.TreatCrossSectionGotoAsFatal && bag.HasCode(diag.CodeCrossSectionGoto) {
		for _, d := range bag.All() {
			if d.Code == diag.CodeCrossSectionGoto {
				return nil, &diag.Error{Diagnostic: diag.Diagnostic{
					Severity: diag.SeverityFatal,
					Code:     d.Code,
					Message:  d.Message,
					Span:     d.Span,
				}}
			}
		}
	}

	logger := log.Default()
	results := make([]*SectionResult, 0, len(built.Order))
	for _, name := range built.Order {
		full := built.Sections[name]

		key := sourceKey
		key.Section = name
		if cache != nil {
			if tree, ok := cache.Get(key); ok {
				logger.Debug("astcache hit", "section", name)
				results = append(results, &SectionResult{Name: name, Stages: StageGraphs{FullStmtGraph: full}, Tree: tree})
				continue
			}
		}

		logger.Debug("building section", "section", name, "statements", full.Len())

		pruned := reach.Prune(full, bag)
		if dropped := len(pruned.Unreachable); dropped > 0 {
			logger.Debug("pruned unreachable nodes", "section", name, "count", dropped)
		}
		collapsed := structgraph.Collapse(pruned.Graph)
		loops := loopfinder.Compute(collapsed, bag)
		for _, l := range loops.Loops {
			logger.Debug("loop discovered", "section", name, "loop", l.ID, "nodes", len(l.Nodes), "irreducible", l.Irreducible)
		}
		scopes := scopegraph.Compute(collapsed, loops)
		tree := structurer.Structure(collapsed, loops, scopes, cfg, bag, name)

		if cache != nil {
			cache.Put(key, tree)
		}

		results = append(results, &SectionResult{
			Name: name,
			Stages: StageGraphs{
				FullStmtGraph: full,
				StmtGraph:     pruned.Graph,
				CobolGraph:    collapsed,
				AcyclicGraph:  collapsed,
				Loops:         loops,
				Scopes:        scopes,
			},
			Tree: tree,
		})
	}
	return results, nil
}
