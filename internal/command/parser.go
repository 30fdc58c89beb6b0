// Package command extracts `{tool <name> <args>}` commands from model output.
package command

import (
	"regexp"
	"strings"

	"zenai/internal/domain"
)

const opener = "{tool"

// detectRe is the cheap pre-check used before a full scan.
var detectRe = regexp.MustCompile(`\{tool\s+[^\s{}]+`)

// HasCommands reports whether text looks like it contains at least one command.
// It may return true for text that Parse rejects (an unbalanced fragment).
func HasCommands(text string) bool {
	return detectRe.MatchString(text)
}

type match struct {
	cmd        domain.Command
	start, end int
}

// Parse returns the commands in text in source order. Text without commands,
// or with only malformed fragments, yields nil.
func Parse(text string) []domain.Command {
	matches := scan(text)
	if len(matches) == 0 {
		return nil
	}
	cmds := make([]domain.Command, len(matches))
	for i, m := range matches {
		cmds[i] = m.cmd
	}
	return cmds
}

// Strip returns text with every command removed, trimmed.
func Strip(text string) string {
	matches := scan(text)
	if len(matches) == 0 {
		return strings.TrimSpace(text)
	}
	var sb strings.Builder
	prev := 0
	for _, m := range matches {
		sb.WriteString(text[prev:m.start])
		prev = m.end
	}
	sb.WriteString(text[prev:])
	return strings.TrimSpace(sb.String())
}

// Split is Parse and Strip in a single pass.
func Split(text string) ([]domain.Command, string) {
	return Parse(text), Strip(text)
}

func scan(text string) []match {
	var out []match
	i := 0
	for i < len(text) {
		j := strings.Index(text[i:], opener)
		if j < 0 {
			break
		}
		start := i + j
		m, ok := scanAt(text, start)
		if !ok {
			i = start + 1
			continue
		}
		out = append(out, m)
		i = m.end
	}
	return out
}

// scanAt tries to read one command whose opening brace is at start.
func scanAt(text string, start int) (match, bool) {
	pos := start + len(opener)
	if pos >= len(text) || !isSpace(text[pos]) {
		return match{}, false
	}
	for pos < len(text) && isSpace(text[pos]) {
		pos++
	}
	nameStart := pos
	for pos < len(text) && !isSpace(text[pos]) && text[pos] != '{' && text[pos] != '}' {
		pos++
	}
	if pos == nameStart || pos >= len(text) {
		return match{}, false
	}
	name := text[nameStart:pos]

	var args string
	switch {
	case text[pos] == '}':
	case isSpace(text[pos]):
		end := closingQuoted(text, pos)
		if end < 0 {
			end = closingPlain(text, pos)
		}
		if end < 0 {
			return match{}, false
		}
		args = strings.TrimSpace(text[pos:end])
		pos = end
	default:
		return match{}, false
	}

	return match{
		cmd:   domain.Command{Name: name, Args: args, Source: text[start : pos+1]},
		start: start,
		end:   pos + 1,
	}, true
}

// closingQuoted finds the brace closing a command whose body starts at from,
// ignoring braces inside "..." and """...""" strings. Returns -1 if none.
func closingQuoted(text string, from int) int {
	depth := 1
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '"':
			if strings.HasPrefix(text[i:], `"""`) {
				k := strings.Index(text[i+3:], `"""`)
				if k < 0 {
					return -1
				}
				i += 3 + k + 2
				continue
			}
			k := closingQuote(text, i+1)
			if k < 0 {
				return -1
			}
			i = k
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func closingQuote(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// closingPlain counts braces only.
func closingPlain(text string, from int) int {
	depth := 1
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
