package agent

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"zenai/internal/domain"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	toolSectionHeader  = "## Tool System"
	rulesHeader        = "## Tool Usage Rules"
	maxExamplesPerTool = 2
)

// DefaultInstructions is used when the config does not supply any.
const DefaultInstructions = `You are Zen AI, an assistant that gets things done by calling tools.

## Tool System
The available tools are listed here at runtime.

## Behaviour
- Talk to the user only through main.speak.
- Work step by step. After each step you receive the tool results.
- When the task is complete, call main.stop.`

// Catalog lists tool metadata.
type Catalog interface {
	List() map[string]domain.ToolMetadata
}

// InstructionBuilder rewrites the "## Tool System" section of the base
// instructions so it lists exactly the tools an episode may use. Results are
// cached per allow-list.
type InstructionBuilder struct {
	base    string
	catalog Catalog
	cache   *ristretto.Cache[string, string]
	logger  *slog.Logger
}

func NewInstructionBuilder(base string, catalog Catalog, logger *slog.Logger) (*InstructionBuilder, error) {
	if strings.TrimSpace(base) == "" {
		base = DefaultInstructions
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1000,
		MaxCost:     4 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("instruction cache: %w", err)
	}
	return &InstructionBuilder{base: base, catalog: catalog, cache: cache, logger: logger}, nil
}

// Build returns the instructions for an episode restricted by allow.
func (b *InstructionBuilder) Build(allow *AllowList) string {
	key := allow.Key()
	if s, ok := b.cache.Get(key); ok {
		return s
	}
	s := replaceToolSection(b.base, b.toolSection(allow))
	b.cache.Set(key, s, int64(len(s)))
	b.cache.Wait()
	b.logger.Debug("built instructions", "allow", key, "len", len(s))
	return s
}

// Close releases the cache.
func (b *InstructionBuilder) Close() {
	b.cache.Close()
}

func (b *InstructionBuilder) toolSection(allow *AllowList) string {
	tools := b.catalog.List()
	names := make([]string, 0, len(tools))
	for name := range tools {
		if allow.Allows(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var sb strings.Builder
	sb.WriteString(toolSectionHeader + "\n")
	sb.WriteString("You can use tools by writing commands with this syntax: `{tool <name> <args>}`\n")
	sb.WriteString("- Tool names follow the format `developer.project`\n")
	sb.WriteString("- Always use the exact tool names listed below\n\n")

	if len(names) == 0 {
		sb.WriteString("No tools currently available.\n")
	} else {
		sb.WriteString("Available Tools:\n")
		for _, name := range names {
			meta := tools[name]
			desc := meta.Description
			if desc == "" {
				desc = "No description available"
			}
			fmt.Fprintf(&sb, "- **%s**: %s\n", name, desc)
			examples := meta.UsageExamples
			if len(examples) > maxExamplesPerTool {
				examples = examples[:maxExamplesPerTool]
			}
			if len(examples) > 0 {
				sb.WriteString("  Examples:\n")
				for _, ex := range examples {
					fmt.Fprintf(&sb, "    - %s\n", strings.ReplaceAll(ex, "\n", "\n      "))
				}
			}
		}
	}

	sb.WriteString("\n" + rulesHeader + ":\n")
	sb.WriteString("- Use only the tools listed above\n")
	sb.WriteString("- Follow the exact syntax shown in the examples\n")
	sb.WriteString("- Use triple quotes for values that span several lines: key=\"\"\"...\"\"\"\n")
	sb.WriteString("- Several commands in one response run in order")
	return sb.String()
}

// replaceToolSection swaps the "## Tool System" section (and any rules
// section that follows it) for section, or appends section when base has none.
func replaceToolSection(base, section string) string {
	lines := strings.Split(base, "\n")
	out := make([]string, 0, len(lines))
	replaced, skipping := false, false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, toolSectionHeader):
			if !replaced {
				out = append(out, strings.Split(section, "\n")...)
				replaced = true
			}
			skipping = true
		case skipping && strings.HasPrefix(trimmed, rulesHeader):
		case skipping && strings.HasPrefix(trimmed, "##"):
			skipping = false
			out = append(out, "", line)
		case !skipping:
			out = append(out, line)
		}
	}
	if !replaced {
		return strings.TrimRight(base, "\n") + "\n\n" + section
	}
	return strings.Join(out, "\n")
}
