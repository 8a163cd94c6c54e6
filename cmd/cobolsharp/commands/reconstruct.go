package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cobolsharp/cobolsharp-go/internal/astcache"
	"github.com/cobolsharp/cobolsharp-go/internal/cobolxml"
	"github.com/cobolsharp/cobolsharp-go/internal/config"
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/dotgraph"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
	"github.com/cobolsharp/cobolsharp-go/internal/ir"
	"github.com/cobolsharp/cobolsharp-go/internal/log"
	"github.com/cobolsharp/cobolsharp-go/internal/pipeline"
	"github.com/cobolsharp/cobolsharp-go/internal/render"
)

var outputFormats = map[string]bool{
	"html":            true,
	"code":            true,
	"full_stmt_graph": true,
	"stmt_graph":      true,
	"cobol_graph":     true,
	"acyclic_graph":   true,
	"scope_graph":     true,
	"xml":             true,
}

// cacheFileName is the on-disk astcache file, one per destination
// directory, the way a build tool's local cache normally sits next to its
// output rather than in a global location.
const cacheFileName = ".cobolsharp-cache.msgpack"

func runReconstruct(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if !outputFormats[format] {
		return fmt.Errorf("unknown format %q (want one of html, code, full_stmt_graph, stmt_graph, cobol_graph, acyclic_graph, scope_graph, xml)", format)
	}
	tabSize, _ := cmd.Flags().GetInt("tabsize")
	encoding, _ := cmd.Flags().GetString("encoding")
	destDir, _ := cmd.Flags().GetString("destdir")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("tabsize") {
		cfg.TabSize = tabSize
	}
	if cmd.Flags().Changed("encoding") {
		cfg.SourceEncoding = encoding
	}
	if cmd.Flags().Changed("destdir") {
		cfg.DestDir = destDir
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.Default()
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var cache *astcache.Cache
	cacheDir := cfg.DestDir
	if !noCache {
		cache = astcache.New(512)
		if cacheDir == "" {
			cacheDir = "."
		}
		cachePath := filepath.Join(cacheDir, cacheFileName)
		if err := cache.LoadFile(cachePath); err != nil {
			logger.Warn("astcache: starting cold", "error", err.Error())
		}
	}

	for _, sourcePath := range args {
		if err := processSource(sourcePath, cfg, cache, format, logger); err != nil {
			return fmt.Errorf("%s: %w", sourcePath, err)
		}
	}

	if cache != nil {
		cachePath := filepath.Join(cacheDir, cacheFileName)
		if err := cache.SaveFile(cachePath); err != nil {
			logger.Warn("astcache: failed to persist", "error", err.Error())
		}
	}

	return nil
}

func processSource(sourcePath string, cfg *config.Config, cache *astcache.Cache, format string, logger log.Logger) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	prog, err := cobolxml.Parse(f)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	outputBase := sourcePath
	if cfg.DestDir != "" {
		outputBase = filepath.Join(cfg.DestDir, filepath.Base(sourcePath))
	}
	outputBase = strings.TrimSuffix(outputBase, filepath.Ext(outputBase))

	if format == "xml" {
		data, err := cobolxml.Dump(prog)
		if err != nil {
			return fmt.Errorf("dumping xml: %w", err)
		}
		path := outputBase + "_dump.xml"
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Println("wrote", path)
		return nil
	}

	bag := diag.Bag{}
	var results []*pipeline.SectionResult
	if cache != nil {
		key := astcache.KeyFor(sourcePath, info, "")
		results, err = pipeline.RunCached(prog, cfg, &bag, cache, key)
	} else {
		results, err = pipeline.Run(prog, cfg, &bag)
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		log.LogDiagnostics(logger, r.Name, &bag)
	}

	switch format {
	case "full_stmt_graph", "stmt_graph", "cobol_graph", "acyclic_graph", "scope_graph":
		return writeDotFiles(outputBase, format, results)
	case "code":
		return writeCode(outputBase, results)
	case "html":
		return writeHTML(prog.Name, outputBase, results)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// pickStageGraph picks the intermediate graph matching format. scope_graph
// has no distinct graph.Graph of its own in this model (unlike the
// original's ScopeStructuredGraph, its node/edge set is identical to the
// acyclic graph's -- internal/scopegraph only annotates loop exits on top
// of it), so it reuses AcyclicGraph. No stage sets Node.LoopID on that
// graph, so the rendered nodes carry no loop ids.
func pickStageGraph(r *pipeline.SectionResult, format string) *graph.Graph {
	switch format {
	case "full_stmt_graph":
		return r.Stages.FullStmtGraph
	case "stmt_graph":
		return r.Stages.StmtGraph
	case "cobol_graph":
		return r.Stages.CobolGraph
	case "acyclic_graph", "scope_graph":
		return r.Stages.AcyclicGraph
	default:
		return nil
	}
}

func writeDotFiles(outputBase, format string, results []*pipeline.SectionResult) error {
	for _, r := range results {
		g := pickStageGraph(r, format)
		if g == nil {
			continue
		}
		path := fmt.Sprintf("%s_%s.dot", outputBase, r.Name)
		if err := os.WriteFile(path, []byte(dotgraph.Write(r.Name, g)), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Println("wrote", path)
	}
	return nil
}

func writeCode(outputBase string, results []*pipeline.SectionResult) error {
	path := outputBase + ".py"
	var b strings.Builder
	for _, r := range results {
		b.WriteString(render.Code(r.Tree))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Println("wrote", path)
	return nil
}

func writeHTML(programName, outputBase string, results []*pipeline.SectionResult) error {
	trees := make([]*ir.Tree, 0, len(results))
	for _, r := range results {
		trees = append(trees, r.Tree)
	}
	path := outputBase + ".html"
	html := render.HTML(programName, trees)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Println("wrote", path)
	return nil
}
