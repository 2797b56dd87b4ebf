// Package modresolve implements aria's import path resolution (spec
// §6) and satisfies vm.ModuleLoader, so pkg/vm's IMPORT opcode never
// needs to know how a bare identifier or path-style import spec turns
// into a source file: bare identifier X searches
// <importing-file-dir>/X.aria then <interpreter-dir>/lib/X.aria; a
// spec containing '/' or '\' resolves relative to the importing
// file's own directory (compiler enforces the alias-is-mandatory half
// of that rule at compile time, see pkg/compiler/statements.go's
// compileImport).
package modresolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deeplakee/aria/pkg/compiler"
	"github.com/deeplakee/aria/pkg/parser"
	"github.com/deeplakee/aria/pkg/vm"
)

// Ext is the source file extension bare imports and the CLI both
// resolve against (spec §6).
const Ext = ".aria"

// Loader resolves and compiles import targets, implementing
// vm.ModuleLoader. LibDir is the interpreter's own lib/ directory,
// searched second for a bare identifier import.
type Loader struct {
	LibDir string

	compiled map[string]*vm.Closure
}

// NewLoader returns a Loader whose bare-identifier fallback search is
// <libDir>/X.aria (libDir is typically the running executable's own
// directory joined with "lib").
func NewLoader(libDir string) *Loader {
	return &Loader{LibDir: libDir, compiled: make(map[string]*vm.Closure)}
}

// Load resolves spec relative to fromPath (the importing file's own
// source path) and compiles it, caching the compiled Closure by
// resolved path so re-importing the same module doesn't recompile it
// — the VM's own ModuleCache (vm_modules.go's doImport) separately
// ensures it's only ever *executed* once.
func (l *Loader) Load(v *vm.VM, fromPath, spec string) (*vm.Closure, string, error) {
	resolved, err := l.resolve(fromPath, spec)
	if err != nil {
		return nil, "", err
	}
	if closure, ok := l.compiled[resolved]; ok {
		return closure, resolved, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("cannot read module %q: %w", resolved, err)
	}

	p := parser.New(string(data))
	program, perr := p.Parse()
	if perr != nil {
		return nil, "", fmt.Errorf("module %q: %w", resolved, perr)
	}

	c := compiler.New(v.Heap())
	closure, cerr := c.CompileModule(program, resolved)
	if cerr != nil {
		return nil, "", fmt.Errorf("module %q: %w", resolved, cerr)
	}

	l.compiled[resolved] = closure
	return closure, resolved, nil
}

func (l *Loader) resolve(fromPath, spec string) (string, error) {
	if containsPathSep(spec) {
		dir := filepath.Dir(fromPath)
		candidate := filepath.Join(dir, withExt(spec))
		if fileExists(candidate) {
			return filepath.Clean(candidate), nil
		}
		return "", fmt.Errorf("module %q not found relative to %s", spec, dir)
	}

	sourceDirCandidate := filepath.Join(filepath.Dir(fromPath), withExt(spec))
	if fileExists(sourceDirCandidate) {
		return filepath.Clean(sourceDirCandidate), nil
	}

	if l.LibDir != "" {
		libCandidate := filepath.Join(l.LibDir, withExt(spec))
		if fileExists(libCandidate) {
			return filepath.Clean(libCandidate), nil
		}
	}

	return "", fmt.Errorf("module %q not found in %s or %s", spec, filepath.Dir(fromPath), l.LibDir)
}

func withExt(spec string) string {
	if filepath.Ext(spec) == "" {
		return spec + Ext
	}
	return spec
}

func containsPathSep(spec string) bool {
	for _, r := range spec {
		if r == '/' || r == '\\' {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
