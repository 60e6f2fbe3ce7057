// Command eastasianspacing adds contextual half-width spacing (chws/vchw,
// halt/vhal) for East Asian punctuation to OpenType/TrueType fonts,
// following JLREQ (Japanese) and CLREQ (Chinese) line-layout conventions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/pterm/pterm"

	"github.com/boxesandglue/textshape/internal/eastasianconfig"
	"github.com/boxesandglue/textshape/spacing"
)

func tracer() tracing.Trace {
	return tracing.Select("eastasianspacing")
}

type indexList []int

func (l *indexList) String() string {
	strs := make([]string, len(*l))
	for i, v := range *l {
		strs[i] = strconv.Itoa(v)
	}
	return strings.Join(strs, ",")
}

func (l *indexList) Set(s string) error {
	*l = nil
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("--index: %q is not a number", part)
		}
		*l = append(*l, n)
	}
	return nil
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(s string) error {
	*l = strings.Split(s, ",")
	return nil
}

type verboseFlag int

func (v *verboseFlag) String() string { return strconv.Itoa(int(*v)) }
func (v *verboseFlag) IsBoolFlag() bool { return true }
func (v *verboseFlag) Set(string) error {
	*v++
	return nil
}

func main() {
	outDir := flag.String("o", "", "output directory")
	var indices indexList
	flag.Var(&indices, "index", "TTC face indices to process (comma-separated); others are copied unchanged")
	var languages stringList
	flag.Var(&languages, "language", "per-face language tag(s) (comma-separated)")
	glyphsDir := flag.String("glyphs", "", "dump final L/R/M glyph sets to text files in this directory")
	pathOut := flag.Bool("path-out", false, "print input<TAB>output path pairs")
	flag.BoolVar(pathOut, "p", false, "shorthand for --path-out")
	testLevel := flag.Int("test", 1, "FeatureTester level (0/1/2)")
	noto := flag.Bool("noto", false, "derive --language from each face's own name table, Noto CJK convention, skipping \"Mono\" faces")
	configPath := flag.String("config", "", "YAML file of Config overrides")
	var verbose verboseFlag
	flag.Var(&verbose, "v", "increase log verbosity (repeatable)")
	flag.Var(&verbose, "verbose", "increase log verbosity (repeatable)")
	flag.Parse()

	setupTracing(int(verbose))
	pterm.EnableDebugMessages()

	if *outDir == "" {
		tracer().Errorf("-o is required")
		os.Exit(2)
	}

	cfg := spacing.DefaultConfig()
	if *configPath != "" {
		file, err := eastasianconfig.Load(*configPath)
		if err != nil {
			tracer().Errorf("--config: %v", err)
			os.Exit(2)
		}
		cfg = file.Apply(cfg)
	}
	cfg.TestLevel = *testLevel

	inputs := flag.Args()
	if len(inputs) == 0 {
		tracer().Errorf("no input fonts given")
		os.Exit(2)
	}

	paths, err := collectFontPaths(inputs, *noto)
	if err != nil {
		tracer().Errorf("%v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req := jobRequest{
		outDir:    *outDir,
		glyphsDir: *glyphsDir,
		indices:   []int(indices),
		languages: []string(languages),
		noto:      *noto,
		config:    cfg,
	}

	results := runPool(ctx, paths, req)

	exitCode := 0
	table := [][]string{{"font", "status"}}
	for _, r := range results {
		if r.err != nil {
			exitCode = 1
			table = append(table, []string{r.path, "FAILED: " + r.err.Error()})
			continue
		}
		if !r.wrote {
			table = append(table, []string{r.path, "skipped (no changes)"})
			continue
		}
		table = append(table, []string{r.path, "ok -> " + r.outPath})
		if *pathOut {
			fmt.Printf("%s\t%s\n", r.path, r.outPath)
		}
	}

	if !*pathOut {
		if rendered, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender(); err == nil {
			pterm.Println(rendered)
		}
	}

	os.Exit(exitCode)
}

func setupTracing(verbosity int) {
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{
		"tracing.adapter":        "go",
		"trace.eastasianspacing": "Error",
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		fmt.Fprintln(os.Stderr, "error configuring tracing")
		os.Exit(1)
	}
	tracing.SetTraceSelector(trace2go.Selector())

	level := tracing.LevelError
	switch {
	case verbosity >= 2:
		level = tracing.LevelDebug
	case verbosity >= 1:
		level = tracing.LevelInfo
	}
	tracer().SetTraceLevel(level)
}

// collectFontPaths expands directories recursively and, under --noto,
// restricts the walk to filenames matching the Noto CJK convention
// (original_source/make-noto-cjk.py's `glob.glob(... 'Noto*CJK*')`), since
// deriving language from every arbitrary font's name table isn't this
// mode's contract.
func collectFontPaths(inputs []string, noto bool) ([]string, error) {
	var out []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, in)
			continue
		}
		err = filepath.Walk(in, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".ttf" && ext != ".otf" && ext != ".ttc" && ext != ".otc" {
				return nil
			}
			base := filepath.Base(path)
			if noto && !(strings.Contains(base, "Noto") && strings.Contains(base, "CJK")) {
				return nil
			}
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
