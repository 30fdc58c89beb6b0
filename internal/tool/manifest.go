package tool

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"zenai/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	manifestFile = "config.yaml"
	scriptFile   = "main.go"
)

//go:embed manifests
var builtinManifests embed.FS

// BuiltinSource is the tree of manifests for the compiled tools.
func BuiltinSource() Source {
	sub, err := fs.Sub(builtinManifests, "manifests")
	if err != nil {
		panic(fmt.Sprintf("tool: embedded manifests: %v", err))
	}
	return Source{Name: "builtin", FS: sub}
}

// DirSource returns a source for a tools directory on disk, or false when the
// directory does not exist.
func DirSource(dir string) (Source, bool) {
	if dir == "" {
		return Source{}, false
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Source{}, false
	}
	return Source{Name: dir, FS: os.DirFS(dir)}, true
}

func readManifest(fsys fs.FS, unit string) (domain.ToolMetadata, error) {
	var meta domain.ToolMetadata
	data, err := fs.ReadFile(fsys, unit+"/"+manifestFile)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, fmt.Errorf("missing %s", manifestFile)
	}
	if err != nil {
		return meta, fmt.Errorf("read %s: %w", manifestFile, err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse %s: %w", manifestFile, err)
	}
	return meta, nil
}

func hasScript(fsys fs.FS, unit string) bool {
	info, err := fs.Stat(fsys, unit+"/"+scriptFile)
	return err == nil && !info.IsDir()
}
