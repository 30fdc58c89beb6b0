// Package tool discovers tool units and executes them by name.
package tool

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"time"

	"zenai/internal/domain"
)

// Source is one tree of tool units. Every immediate subdirectory is a unit
// and its directory name is the tool name.
type Source struct {
	Name string
	FS   fs.FS
}

// Descriptor is a loaded tool.
type Descriptor struct {
	Name     string
	Metadata domain.ToolMetadata
	Handler  domain.Handler
	Source   string
	Script   bool // entry point is an interpreted main.go
}

// Skipped records a unit that failed to load.
type Skipped struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// LoadConfig configures Load.
type LoadConfig struct {
	Sources  []Source                  // scanned in order; later units replace earlier ones
	Builtins map[string]domain.Handler // compiled entry points by tool name
	Timeout  time.Duration             // per execution, 0 disables
	Logger   *slog.Logger
}

// Registry maps tool names to descriptors. It is read-only after Load.
type Registry struct {
	tools   map[string]*Descriptor
	skipped []Skipped
	timeout time.Duration
	logger  *slog.Logger
}

// Load scans every source and builds the registry. Units that fail to load
// are logged and skipped; Load itself never fails.
func Load(cfg LoadConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:   make(map[string]*Descriptor),
		timeout: cfg.Timeout,
		logger:  logger,
	}

	for _, src := range cfg.Sources {
		entries, err := fs.ReadDir(src.FS, ".")
		if err != nil {
			logger.Error("cannot read tool source", "source", src.Name, "err", err)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			d, err := r.loadUnit(src, entry.Name(), cfg.Builtins)
			if err != nil {
				logger.Warn("skipping tool", "tool", entry.Name(), "source", src.Name, "err", err)
				r.skipped = append(r.skipped, Skipped{Name: entry.Name(), Source: src.Name, Reason: err.Error()})
				continue
			}
			if prev, ok := r.tools[d.Name]; ok {
				logger.Info("tool overridden", "tool", d.Name, "old", prev.Source, "new", src.Name)
			}
			r.tools[d.Name] = d
			logger.Debug("loaded tool", "tool", d.Name, "source", src.Name, "script", d.Script)
		}
	}

	logger.Info("tool registry ready", "tools", len(r.tools), "skipped", len(r.skipped))
	return r
}

func (r *Registry) loadUnit(src Source, name string, builtins map[string]domain.Handler) (*Descriptor, error) {
	meta, err := readManifest(src.FS, name)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{Name: name, Metadata: meta, Source: src.Name}

	if hasScript(src.FS, name) {
		h, err := loadScript(src.FS, name, r.logger)
		if err != nil {
			return nil, err
		}
		d.Handler = h
		d.Script = true
		return d, nil
	}
	if h, ok := builtins[name]; ok && h != nil {
		d.Handler = h
		return d, nil
	}
	return nil, fmt.Errorf("no entry point: need %s or a compiled handler", scriptFile)
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// List returns a snapshot of name to metadata.
func (r *Registry) List() map[string]domain.ToolMetadata {
	out := make(map[string]domain.ToolMetadata, len(r.tools))
	for name, d := range r.tools {
		out[name] = d.Metadata
	}
	return out
}

// Names returns the tool names sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.tools))
}

// Skipped returns the units that failed to load.
func (r *Registry) Skipped() []Skipped {
	return slices.Clone(r.skipped)
}

// Execute runs the named tool. It never panics and never returns an error:
// every failure becomes a failed ToolResult.
func (r *Registry) Execute(ctx context.Context, name, args string) (res domain.ToolResult) {
	d, ok := r.tools[name]
	if !ok {
		return domain.Fail("tool '%s' not found", name)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			res = domain.Fail("tool execution failed: %v", p)
		}
	}()

	out, err := d.Handler.Execute(ctx, args)
	if err != nil {
		return domain.Fail("tool execution failed: %v", err)
	}
	return domain.NormalizeResult(out)
}

// Summary is the per-tool view served to channels.
type Summary struct {
	Description string `json:"description"`
	Developer   string `json:"developer"`
	Project     string `json:"project"`
	Parameters  any    `json:"parameters"`
	Script      bool   `json:"script"`
}

// Summaries describes every loaded tool, filling unknown fields.
func (r *Registry) Summaries() map[string]Summary {
	out := make(map[string]Summary, len(r.tools))
	for name, d := range r.tools {
		s := Summary{
			Description: d.Metadata.Description,
			Developer:   d.Metadata.Developer,
			Project:     d.Metadata.Project,
			Parameters:  d.Metadata.Parameters,
			Script:      d.Script,
		}
		if s.Description == "" {
			s.Description = "No description"
		}
		if s.Developer == "" {
			s.Developer = "Unknown"
		}
		if s.Project == "" {
			s.Project = "Unknown"
		}
		if s.Parameters == nil {
			s.Parameters = []any{}
		}
		out[name] = s
	}
	return out
}
