package domain

import "strings"

// Command is one `{tool <name> <args>}` occurrence extracted from model output.
type Command struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Source string `json:"source"` // exact matched text
}

// Raw reconstructs the wire form of the command.
func (c Command) Raw() string {
	var sb strings.Builder
	sb.WriteString("{tool ")
	sb.WriteString(c.Name)
	if c.Args != "" {
		sb.WriteByte(' ')
		sb.WriteString(c.Args)
	}
	sb.WriteByte('}')
	return sb.String()
}
