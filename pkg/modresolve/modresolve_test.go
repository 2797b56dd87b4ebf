package modresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deeplakee/aria/pkg/vm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveBareIdentifierInSourceDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.aria", `var x = 1;`)
	fromPath := filepath.Join(dir, "main.aria")

	l := NewLoader("")
	resolved, err := l.resolve(fromPath, "util")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(filepath.Join(dir, "util.aria")), resolved)
}

func TestResolveBareIdentifierFallsBackToLibDir(t *testing.T) {
	srcDir := t.TempDir()
	libDir := t.TempDir()
	writeFile(t, libDir, "fmt.aria", `var x = 1;`)
	fromPath := filepath.Join(srcDir, "main.aria")

	l := NewLoader(libDir)
	resolved, err := l.resolve(fromPath, "fmt")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(filepath.Join(libDir, "fmt.aria")), resolved)
}

func TestResolveSourceDirWinsOverLibDir(t *testing.T) {
	srcDir := t.TempDir()
	libDir := t.TempDir()
	writeFile(t, srcDir, "fmt.aria", `var x = "local";`)
	writeFile(t, libDir, "fmt.aria", `var x = "lib";`)
	fromPath := filepath.Join(srcDir, "main.aria")

	l := NewLoader(libDir)
	resolved, err := l.resolve(fromPath, "fmt")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(filepath.Join(srcDir, "fmt.aria")), resolved)
}

func TestResolvePathStyleIsRelativeToImportingFileOnly(t *testing.T) {
	srcDir := t.TempDir()
	libDir := t.TempDir()
	sub := filepath.Join(srcDir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "helper.aria", `var x = 1;`)
	writeFile(t, libDir, "helper.aria", `var x = 1;`) // present in lib, must NOT be used
	fromPath := filepath.Join(srcDir, "main.aria")

	l := NewLoader(libDir)
	resolved, err := l.resolve(fromPath, "./sub/helper")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(filepath.Join(sub, "helper.aria")), resolved)
}

func TestResolvePathStyleNotFoundDoesNotFallBackToLibDir(t *testing.T) {
	srcDir := t.TempDir()
	libDir := t.TempDir()
	writeFile(t, libDir, "missing.aria", `var x = 1;`)
	fromPath := filepath.Join(srcDir, "main.aria")

	l := NewLoader(libDir)
	_, err := l.resolve(fromPath, "./missing")
	require.Error(t, err)
}

func TestResolveMissingModuleReportsBothSearchedDirs(t *testing.T) {
	srcDir := t.TempDir()
	libDir := t.TempDir()
	fromPath := filepath.Join(srcDir, "main.aria")

	l := NewLoader(libDir)
	_, err := l.resolve(fromPath, "nosuch")
	require.Error(t, err)
	require.Contains(t, err.Error(), srcDir)
	require.Contains(t, err.Error(), libDir)
}

func TestLoadCachesCompiledClosureByResolvedPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.aria", `var x = 1;`)
	fromPath := filepath.Join(dir, "main.aria")

	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	l := NewLoader("")

	closure1, resolved1, err := l.Load(v, fromPath, "util")
	require.NoError(t, err)
	closure2, resolved2, err := l.Load(v, fromPath, "util")
	require.NoError(t, err)

	require.Equal(t, resolved1, resolved2)
	require.Same(t, closure1, closure2)
}

func TestLoadReportsParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.aria", `var x = ;`)
	fromPath := filepath.Join(dir, "main.aria")

	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	l := NewLoader("")

	_, _, err := l.Load(v, fromPath, "broken")
	require.Error(t, err)
}
