package hazard

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
)

// ErrNoInput is returned when Scan is called with nothing to scan.
var ErrNoInput = errors.New("hazard: no paths to scan")

// ScanOptions configures a Scanner. The zero value scans non-test
// files with the default policy and discards logs.
type ScanOptions struct {
	// Policy tunes the severity heuristics.
	Policy Policy

	// IncludeTests scans _test.go files as well.
	IncludeTests bool

	// Parallelism caps concurrent file parses. Zero means GOMAXPROCS.
	Parallelism int

	// Logger receives per-file progress at debug level. Nil discards.
	Logger *slog.Logger
}

// Scanner finds hazard patterns in Go source without running it.
// Scanning the same input twice yields identical reports, and a
// Scanner may be reused across calls.
type Scanner struct {
	policy       Policy
	includeTests bool
	limit        int
	log          *slog.Logger
}

// NewScanner builds a Scanner from opts.
func NewScanner(opts ScanOptions) *Scanner {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Scanner{
		policy:       opts.Policy.normalized(),
		includeTests: opts.IncludeTests,
		limit:        limit,
		log:          log,
	}
}

// Scan resolves each path to Go files and evaluates the rules over
// them. A path may be a file, a directory (walked recursively), or a
// package pattern containing "...". Unreadable or unparseable inputs
// become ScanError entries; the scan continues and a report is always
// produced.
func (s *Scanner) Scan(paths ...string) (*Report, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	rep := &Report{}
	var files []string
	for _, p := range paths {
		switch {
		case strings.Contains(p, "..."):
			list, err := s.packageFiles(p)
			if err != nil {
				rep.Errors = append(rep.Errors, ScanError{File: p, Message: err.Error()})
				continue
			}
			files = append(files, list...)
		default:
			info, err := os.Stat(p)
			if err != nil {
				rep.Errors = append(rep.Errors, ScanError{File: p, Message: err.Error()})
				continue
			}
			if info.IsDir() {
				list, err := s.dirFiles(p)
				if err != nil {
					rep.Errors = append(rep.Errors, ScanError{File: p, Message: err.Error()})
					continue
				}
				files = append(files, list...)
			} else {
				files = append(files, p)
			}
		}
	}
	sort.Strings(files)
	files = dedupeSorted(files)
	s.scanFiles(files, rep)
	return rep, nil
}

// ScanSource runs the detector over a single in-memory file. The name
// only labels positions in findings. Parse failures land in the
// report's error list, same as on disk.
func (s *Scanner) ScanSource(name string, src []byte) *Report {
	rep := &Report{}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name, src, parser.SkipObjectResolution)
	if err != nil {
		rep.Errors = append(rep.Errors, ScanError{File: name, Message: err.Error()})
		return rep
	}
	models := make(map[typeKey]*typeModel)
	collectModels(fset, f, name, models)
	rep.FilesScanned = 1
	rep.Findings = evaluateModels(s.policy, models)
	return rep
}

// scanFiles parses in parallel, then folds the surviving files into
// one model set in sorted order. Parsing is the expensive part; model
// building stays sequential so output order never depends on
// scheduling.
func (s *Scanner) scanFiles(files []string, rep *Report) {
	fset := token.NewFileSet()
	parsed := make([]*ast.File, len(files))
	failures := make([]*ScanError, len(files))

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, path := range files {
		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				failures[i] = &ScanError{File: path, Message: err.Error()}
				return nil
			}
			f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
			if err != nil {
				failures[i] = &ScanError{File: path, Message: err.Error()}
				return nil
			}
			parsed[i] = f
			return nil
		})
	}
	// Workers report per-file failures through the failures slice.
	_ = g.Wait()

	models := make(map[typeKey]*typeModel)
	for i, f := range parsed {
		if failures[i] != nil {
			s.log.Warn("skipping file", "file", files[i], "reason", failures[i].Message)
			rep.Errors = append(rep.Errors, *failures[i])
			continue
		}
		if f == nil {
			continue
		}
		s.log.Debug("scanned", "file", files[i])
		collectModels(fset, f, files[i], models)
		rep.FilesScanned++
	}
	rep.Findings = evaluateModels(s.policy, models)
}

// dirFiles walks a directory tree collecting Go files, skipping
// vendor, testdata and hidden or underscore directories.
func (s *Scanner) dirFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.wantFile(name) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// packageFiles resolves a package pattern such as ./... to its files.
// When a go.mod is found above the working directory the pattern
// resolves against that module.
func (s *Scanner) packageFiles(pattern string) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedFiles}
	if root, modPath, err := findModuleRoot("."); err == nil {
		cfg.Dir = root
		s.log.Debug("resolving pattern", "pattern", pattern, "module", modPath, "root", root)
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", pattern, err)
	}
	var out []string
	for _, pkg := range pkgs {
		for _, f := range pkg.GoFiles {
			if s.wantFile(filepath.Base(f)) {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func (s *Scanner) wantFile(name string) bool {
	if !strings.HasSuffix(name, ".go") {
		return false
	}
	if !s.includeTests && strings.HasSuffix(name, "_test.go") {
		return false
	}
	return true
}

func dedupeSorted(sorted []string) []string {
	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}
