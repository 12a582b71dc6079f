// Package dispatch runs platform commands either on this host or on a
// remote cluster node, with the same result semantics for both.
package dispatch

import (
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
)

// IDPlaceholder is replaced by the entity ID in every command argument.
const IDPlaceholder = "{id}"

// Command is an executable and its arguments. It is never parsed by a shell
// locally; remote command lines are built with shell quoting.
type Command struct {
	Name string
	Args []string
}

// NewCommand builds a command.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// With returns a copy of c with args appended.
func (c Command) With(args ...string) Command {
	out := make([]string, 0, len(c.Args)+len(args))
	out = append(out, c.Args...)
	out = append(out, args...)
	return Command{Name: c.Name, Args: out}
}

// Expand returns a copy of c with IDPlaceholder replaced by id everywhere.
func (c Command) Expand(id int) Command {
	s := strconv.Itoa(id)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, IDPlaceholder, s)
	}
	return Command{Name: strings.ReplaceAll(c.Name, IDPlaceholder, s), Args: args}
}

// Argv returns the command as an argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command as a shell-safe command line.
func (c Command) String() string {
	return shellescape.QuoteCommand(c.Argv())
}
