package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"botadmin/client"
	"botadmin/internal/config"
	"botadmin/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	registry := NewCommandRegistry()
	registerCommands(registry)

	global := flag.NewFlagSet("botadmin", flag.ContinueOnError)
	global.SetOutput(errOut)
	global.Usage = func() { registry.PrintHelp(errOut) }
	configDir := global.String("config", "", "directory holding config.yaml")
	profile := global.String("profile", "", "credential profile, overrides client.store.profile")
	verbose := global.Bool("v", false, "log client activity")
	if err := global.Parse(args); err != nil {
		return 2
	}
	args = global.Args()

	if len(args) == 0 {
		registry.PrintHelp(errOut)
		return 2
	}
	switch args[0] {
	case "help", "-h", "--help":
		if len(args) > 1 {
			if cmd := registry.Lookup(args[1]); cmd != nil {
				cmd.PrintUsage(out)
				return 0
			}
		}
		registry.PrintHelp(out)
		return 0
	}
	cmd := registry.Lookup(args[0])
	if cmd == nil {
		registry.PrintHelp(errOut)
		fmt.Fprintf(errOut, "\nError: unknown command: %s\n", args[0])
		return 2
	}

	env := "cli"
	if *verbose {
		env = "dev"
	}
	logger.InitLogger(env)
	defer logger.Sync()

	var paths []string
	if *configDir != "" {
		paths = append(paths, *configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		fmt.Fprintln(errOut, "Error: load config:", err)
		return 1
	}
	if *profile != "" {
		cfg.Client.Store.Profile = *profile
	}

	a, err := newApp(cfg, in, out, errOut)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return 1
	}
	defer a.Close()

	if err := cmd.Run(ctx, a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, "Error:", describe(err))
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// describe renders API failures the way the admin panel shows them and
// leaves local errors as they are.
func describe(err error) string {
	if client.StatusCode(err) == 0 && !errors.Is(err, client.ErrUnreachable) {
		return err.Error()
	}
	msg := client.NormalizeError(err)
	if client.StatusCode(err) == http.StatusBadRequest {
		if details := client.DescribeError(err); details != msg {
			msg += "\n" + details
		}
	}
	return msg
}
