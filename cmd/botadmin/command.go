package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
)

// Command is one top-level CLI verb.
type Command struct {
	Name        string
	Description string
	Usage       string
	Examples    []string
	Run         func(ctx context.Context, a *app, args []string) error
}

// NewFlagSet returns a flag set that reports usage on the app's error stream.
func (c *Command) NewFlagSet(a *app) *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.Usage = func() { c.PrintUsage(a.errOut) }
	return fs
}

func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", c.Description)
	fmt.Fprintf(w, "USAGE:\n    %s\n\n", c.Usage)
	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, example := range c.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
	}
}

type CommandRegistry struct {
	commands map[string]*Command
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]*Command)}
}

func (r *CommandRegistry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
}

// Lookup returns nil for unknown commands.
func (r *CommandRegistry) Lookup(name string) *Command {
	return r.commands[name]
}

func (r *CommandRegistry) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "botadmin - command line client for the bot admin API")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    botadmin [-config dir] [-profile name] <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %-12s %s\n", name, r.commands[name].Description)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'botadmin help <command>' for more information on a command.")
}
