package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"botadmin/client"
	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/constraints"
)

var errUsage = errors.New("invalid usage")

func registerCommands(r *CommandRegistry) {
	r.Register(&Command{
		Name:        "login",
		Description: "Sign in and store the token pair",
		Usage:       "botadmin login -u <username> [-p <password>]",
		Examples:    []string{"botadmin login -u admin", "echo secret | botadmin login -u admin"},
		Run:         loginCommand,
	})
	r.Register(&Command{
		Name:        "logout",
		Description: "Revoke the refresh token and forget stored credentials",
		Usage:       "botadmin logout",
		Run:         logoutCommand,
	})
	r.Register(&Command{
		Name:        "status",
		Description: "Show who is signed in",
		Usage:       "botadmin status",
		Run:         statusCommand,
	})
	r.Register(&Command{
		Name:        "goods",
		Description: "Inspect the goods catalog",
		Usage:       "botadmin goods list",
		Run:         goodsCommand,
	})
	r.Register(&Command{
		Name:        "users",
		Description: "Export users and run cleanup actions",
		Usage:       "botadmin users export -o <file> | clean-registrations | clean-payments",
		Examples:    []string{"botadmin users export -o users.csv", "botadmin users clean-payments"},
		Run:         usersCommand,
	})
	r.Register(&Command{
		Name:        "newsletters",
		Description: "List newsletters and follow delivery progress",
		Usage:       "botadmin newsletters list [-status s] | progress | watch [-interval d]",
		Examples:    []string{"botadmin newsletters list -status failed", "botadmin newsletters watch -interval 5s"},
		Run:         newslettersCommand,
	})
	r.Register(&Command{
		Name:        "bot",
		Description: "Show the bot configuration",
		Usage:       "botadmin bot config",
		Run:         botCommand,
	})
	r.Register(&Command{
		Name:        "steps",
		Description: "List or reorder registration steps",
		Usage:       "botadmin steps list | reorder <id>=<order>...",
		Examples:    []string{"botadmin steps reorder 4=1 2=2 9=3"},
		Run:         stepsCommand,
	})
	r.Register(&Command{
		Name:        "analytics",
		Description: "Show user registration statistics",
		Usage:       "botadmin analytics",
		Run:         analyticsCommand,
	})
	r.Register(&Command{
		Name:        "get",
		Description: "Send an authenticated GET and print the raw body",
		Usage:       "botadmin get <path>",
		Examples:    []string{"botadmin get users/?only_admins=true"},
		Run:         getCommand,
	})
}

func loginCommand(ctx context.Context, a *app, args []string) error {
	cmd := &Command{Name: "login", Usage: "botadmin login -u <username> [-p <password>]"}
	fs := cmd.NewFlagSet(a)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password, read from stdin when omitted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		fs.Usage()
		return fmt.Errorf("%w: -u is required", errUsage)
	}
	if *password == "" {
		fmt.Fprint(a.errOut, "Password: ")
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	if _, err := a.client.Login(ctx, *username, *password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", *username)
	return nil
}

func logoutCommand(ctx context.Context, a *app, _ []string) error {
	a.client.Logout(ctx)
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func statusCommand(ctx context.Context, a *app, _ []string) error {
	if !a.client.Authenticated(ctx) {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	profile, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	role := "admin"
	if profile.IsSuperuser {
		role = "superuser"
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s) at %s\n", profile.Username, role, a.client.BaseURL())
	return nil
}

func goodsCommand(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 || args[0] != "list" {
		return fmt.Errorf("%w: botadmin goods list", errUsage)
	}
	goods, err := a.client.Goods().List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tQTY\tAVAILABLE")
	for _, g := range goods {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\n", g.ID, g.Title, g.Price, g.Quantity, g.Available)
	}
	return tw.Flush()
}

func usersCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing subcommand", errUsage)
	}
	users := a.client.Users()
	switch args[0] {
	case "export":
		cmd := &Command{Name: "users export", Usage: "botadmin users export -o <file>"}
		fs := cmd.NewFlagSet(a)
		output := fs.String("o", "", "output file, stdout when omitted")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		data, err := users.ExportCSV(ctx)
		if err != nil {
			return err
		}
		if *output == "" {
			_, err = a.out.Write(data)
			return err
		}
		if err := os.WriteFile(*output, data, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", len(data), *output)
		return nil
	case "clean-registrations", "clean-payments":
		var (
			res *v1.CleanupResult
			err error
		)
		if args[0] == "clean-registrations" {
			res, err = users.CleanRegistrations(ctx)
		} else {
			res, err = users.CleanPayments(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s: %d users updated\n", res.Action, res.Updated)
		return nil
	default:
		return fmt.Errorf("%w: unknown users subcommand %q", errUsage, args[0])
	}
}

func newslettersCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing subcommand", errUsage)
	}
	svc := a.client.Newsletters()
	switch args[0] {
	case "list":
		cmd := &Command{Name: "newsletters list", Usage: "botadmin newsletters list [-status s]"}
		fs := cmd.NewFlagSet(a)
		status := fs.String("status", "", "only newsletters with this status")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *status != "" && !constraints.ValidStatus(*status) {
			return fmt.Errorf("%w: unknown status %q", errUsage, *status)
		}
		items, err := svc.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tCHANNEL\tSTATUS\tPROGRESS")
		for _, n := range items {
			if *status != "" && n.Status != *status {
				continue
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0f%%\n", n.ID, n.Title, n.Channel, n.Status, n.Progress)
		}
		return tw.Flush()
	case "progress":
		items, err := svc.Progress(ctx)
		if err != nil {
			return err
		}
		printProgress(a, items)
		return nil
	case "watch":
		cmd := &Command{Name: "newsletters watch", Usage: "botadmin newsletters watch [-interval d] [-metrics addr]"}
		fs := cmd.NewFlagSet(a)
		interval := fs.Duration("interval", a.cfg.Client.ProgressInterval, "poll interval")
		metricsAddr := fs.String("metrics", "", "serve client metrics on this address while watching")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *metricsAddr != "" {
			stop, err := serveMetrics(*metricsAddr)
			if err != nil {
				return err
			}
			defer stop()
		}
		err := svc.WatchProgress(ctx, *interval, func(items []v1.NewsletterProgress) {
			printProgress(a, items)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: unknown newsletters subcommand %q", errUsage, args[0])
	}
}

func printProgress(a *app, items []v1.NewsletterProgress) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("#%d %.0f%%", item.ID, item.Progress))
	}
	if len(parts) == 0 {
		fmt.Fprintln(a.out, "no newsletters in flight")
		return
	}
	fmt.Fprintln(a.out, strings.Join(parts, "  "))
}

func botCommand(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 || args[0] != "config" {
		return fmt.Errorf("%w: botadmin bot config", errUsage)
	}
	cfg, err := a.client.Bot().Config(ctx)
	if err != nil {
		return err
	}
	if cfg.InvoiceImage != nil {
		media := a.client.MediaURL(*cfg.InvoiceImage)
		cfg.InvoiceImage = &media
	}
	return printJSON(a, cfg)
}

func stepsCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing subcommand", errUsage)
	}
	svc := a.client.RegistrationSteps()
	switch args[0] {
	case "list":
		steps, err := svc.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tORDER\tFIELD\tMESSAGE")
		for _, s := range steps {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", s.ID, s.Order, s.FieldType, s.MessageText)
		}
		return tw.Flush()
	case "reorder":
		items, err := parseReorder(args[1:])
		if err != nil {
			return err
		}
		res, err := svc.Reorder(ctx, items)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Reordered %d steps\n", res.Count)
		return nil
	default:
		return fmt.Errorf("%w: unknown steps subcommand %q", errUsage, args[0])
	}
}

// parseReorder reads "id=order" pairs.
func parseReorder(args []string) ([]v1.StepOrder, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: expected <id>=<order> pairs", errUsage)
	}
	items := make([]v1.StepOrder, 0, len(args))
	for _, arg := range args {
		idText, orderText, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not <id>=<order>", errUsage, arg)
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad id in %q", errUsage, arg)
		}
		order, err := strconv.Atoi(orderText)
		if err != nil {
			return nil, fmt.Errorf("%w: bad order in %q", errUsage, arg)
		}
		items = append(items, v1.StepOrder{ID: id, Order: order})
	}
	return items, nil
}

func analyticsCommand(ctx context.Context, a *app, _ []string) error {
	stats, err := a.client.Analytics().Users(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Total users: %d\nPaid users:  %d\n", stats.TotalUsers, stats.PaidUsers)
	if len(stats.DailyStats) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tREGISTRATIONS\tPAID")
	for _, d := range stats.DailyStats {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Day, d.Registrations, d.PaidRegistrations)
	}
	return tw.Flush()
}

func getCommand(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: botadmin get <path>", errUsage)
	}
	path, rawQuery, _ := strings.Cut(args[0], "?")
	req := &client.Request{Method: http.MethodGet, Path: path}
	if rawQuery != "" {
		query, err := url.ParseQuery(rawQuery)
		if err != nil {
			return fmt.Errorf("%w: bad query: %w", errUsage, err)
		}
		req.Query = query
	}
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return err
	}
	var pretty any
	if json.Unmarshal(resp.Body, &pretty) == nil {
		return printJSON(a, pretty)
	}
	_, err = a.out.Write(resp.Body)
	return err
}

func printJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
