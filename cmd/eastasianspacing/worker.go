package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/ot"
	"github.com/boxesandglue/textshape/shaper"
	"github.com/boxesandglue/textshape/spacing"
)

// jobRequest holds the flags every font in the batch shares.
type jobRequest struct {
	outDir    string
	glyphsDir string
	indices   []int
	languages []string
	noto      bool
	config    spacing.Config
}

// jobResult reports what happened to one input path.
type jobResult struct {
	path    string
	outPath string
	wrote   bool
	err     error
}

// runPool processes every path with a bounded worker pool, stdlib sync only
// (no errgroup), and returns results in input order so the summary table
// and --path-out output are reproducible across runs.
func runPool(ctx context.Context, paths []string, req jobRequest) []jobResult {
	results := make([]jobResult, len(paths))

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = processOne(ctx, paths[i], req)
			}
		}()
	}
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = jobResult{path: paths[i], err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func processOne(ctx context.Context, path string, req jobRequest) jobResult {
	if err := ctx.Err(); err != nil {
		return jobResult{path: path, err: err}
	}

	coll, err := fontio.Load(path)
	if err != nil {
		return jobResult{path: path, err: fmt.Errorf("load: %w", err)}
	}

	extShaper, closeShaper, err := maybeExternalShaper()
	if err != nil {
		return jobResult{path: path, err: err}
	}
	if closeShaper != nil {
		defer closeShaper()
	}

	wroteAny := false
	for _, face := range coll.Faces() {
		if err := ctx.Err(); err != nil {
			return jobResult{path: path, err: err}
		}
		if len(req.indices) > 0 && !containsInt(req.indices, face.Index()) {
			continue
		}

		cfg := req.config
		if req.noto {
			lang, skip := notoLanguageForFace(face)
			if skip {
				tracer().Infof("%s face %d: monospace Noto CJK variant, skipping", path, face.Index())
				continue
			}
			if lang != spacing.LanguageUnknown {
				cfg = cfg.WithLanguage(lang)
			}
		} else if idx := indexOf(req.indices, face.Index()); idx >= 0 && idx < len(req.languages) {
			cfg = cfg.WithLanguage(spacing.Language(req.languages[idx]))
		} else if len(req.languages) == 1 {
			cfg = cfg.WithLanguage(spacing.Language(req.languages[0]))
		}

		var sh shaper.Interface
		if extShaper != nil {
			sh = extShaper
		}

		result, err := spacing.ProcessFace(face, cfg, tracer(), sh)
		if err != nil {
			return jobResult{path: path, err: &spacing.FaceError{FaceIndex: face.Index(), Err: err}}
		}
		if result.Modified {
			wroteAny = true
			if req.glyphsDir != "" {
				if err := writeGlyphSidecar(req.glyphsDir, path, face.Index(), result.Glyphs); err != nil {
					tracer().Errorf("%s face %d: glyph sidecar: %v", path, face.Index(), err)
				}
			}
		}
	}

	if !wroteAny {
		return jobResult{path: path, wrote: false}
	}

	outPath := filepath.Join(req.outDir, filepath.Base(path))
	if err := os.MkdirAll(req.outDir, 0o755); err != nil {
		return jobResult{path: path, err: err}
	}
	if err := coll.Save(outPath); err != nil {
		return jobResult{path: path, err: fmt.Errorf("save: %w", err)}
	}
	return jobResult{path: path, outPath: outPath, wrote: true}
}

// maybeExternalShaper builds an ExternalShaper from the SHAPER environment
// variable, if set. processOne calls it once per input path, so each path
// gets its own child process; its close func must be called once that
// path's faces are done.
func maybeExternalShaper() (*shaper.ExternalShaper, func(), error) {
	cmdline := os.Getenv("SHAPER")
	if cmdline == "" {
		return nil, nil, nil
	}
	s, err := shaper.NewExternalShaper(cmdline)
	if err != nil {
		return nil, nil, fmt.Errorf("SHAPER: %w", err)
	}
	return s, func() { s.Close() }, nil
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func indexOf(list []int, v int) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

// writeGlyphSidecar dumps a face's resolved L/R/M glyph classes as one
// "<class> <glyph-id> <codepoint-hex>" line per glyph, sorted by glyph ID
// within each class, following the ascending-order convention
// original_source/make-noto-cjk.py's "-gids.txt" sidecar files use.
func writeGlyphSidecar(dir, fontPath string, faceIndex int, rg spacing.ResolvedGlyphs) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%d-gids.txt", filepath.Base(fontPath), faceIndex)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	write := func(class string, m map[ot.GlyphID]rune) error {
		ids := make([]ot.GlyphID, 0, len(m))
		for gid := range m {
			ids = append(ids, gid)
		}
		sortGlyphIDs(ids)
		for _, gid := range ids {
			if _, err := fmt.Fprintf(f, "%s %d U+%04X\n", class, gid, m[gid]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write("L", rg.Left); err != nil {
		return err
	}
	if err := write("R", rg.Right); err != nil {
		return err
	}
	if err := write("M", rg.Middle); err != nil {
		return err
	}
	return nil
}

func sortGlyphIDs(ids []ot.GlyphID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
