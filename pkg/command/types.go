package command

import "strings"

// Command is a parsed chat command such as `/grant 42 ADMIN`.
type Command struct {
	Prefix rune
	Name   string
	Args   []string
}

// Arg returns the i-th argument, or "" when it is missing.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// String renders the command back in its canonical form. Arguments that
// contain spaces are quoted so the result parses to the same command.
func (c Command) String() string {
	var b strings.Builder
	b.WriteRune(c.Prefix)
	b.WriteString(c.Name)
	for _, arg := range c.Args {
		b.WriteByte(' ')
		if strings.ContainsRune(arg, ' ') {
			b.WriteByte('"')
			b.WriteString(arg)
			b.WriteByte('"')
			continue
		}
		b.WriteString(arg)
	}
	return b.String()
}
