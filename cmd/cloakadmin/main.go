// Command cloakadmin maintains the snippet store directly, without the HTTP API.
//
// It reads the same environment as the server (STORE_DRIVER, DB_PATH,
// DATABASE_URL, STORE_TIMEOUT, LOG_*) and goes through the same service
// layer, so validation and logging match.
//
//	cloakadmin list                   full JSON dump, secret keys included (the backup)
//	cloakadmin stats                  snippet count and most viewed
//	cloakadmin cleanup [-days 30]     delete snippets older than N days
//	cloakadmin delete <slug>          delete one snippet
//	cloakadmin hash-password <pw>     print a bcrypt hash for ADMIN_PASSWORD_HASH
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/anuragaming1/anura-kun/internal/auth"
	"github.com/anuragaming1/anura-kun/internal/config"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/server"
	"github.com/anuragaming1/anura-kun/internal/service"
)

const usage = `usage: cloakadmin <command> [flags]

commands:
  list                 dump every snippet as JSON, secret keys included
  stats                print the snippet count and the most viewed snippets
  cleanup [-days N]    delete snippets older than N days (default 30)
  delete <slug>        delete one snippet
  hash-password <pw>   print a bcrypt hash for ADMIN_PASSWORD_HASH
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// run is main without the process: it returns the exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]

	if cmd == "hash-password" {
		return hashPassword(rest, stdout, stderr)
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := cfg.NewLogger(stderr)

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("opening store", slog.String("error", err.Error()))
		return 1
	}
	defer store.Close()

	snippets := service.NewSnippetService(store, logger, cfg.StoreTimeout)

	switch cmd {
	case "list":
		err = listCmd(ctx, snippets, stdout)
	case "stats":
		err = statsCmd(ctx, snippets, stdout)
	case "cleanup":
		err = cleanupCmd(ctx, snippets, rest, stdout, stderr)
	case "delete":
		err = deleteCmd(ctx, snippets, rest, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, usageErr)
			return 2
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func listCmd(ctx context.Context, snippets *service.SnippetService, out io.Writer) error {
	all, err := snippets.List(ctx)
	if err != nil {
		return err
	}
	if all == nil {
		all = []model.Snippet{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(all)
}

// statsTop is how many snippets stats lists by views.
const statsTop = 5

func statsCmd(ctx context.Context, snippets *service.SnippetService, out io.Writer) error {
	n, err := snippets.Count(ctx)
	if err != nil {
		return err
	}
	all, err := snippets.List(ctx)
	if err != nil {
		return err
	}

	var views int64
	for _, s := range all {
		views += s.Views
	}
	fmt.Fprintf(out, "snippets: %d\nviews:    %d\n", n, views)

	slices.SortStableFunc(all, func(a, b model.Snippet) int {
		switch {
		case a.Views > b.Views:
			return -1
		case a.Views < b.Views:
			return 1
		}
		return 0
	})
	if len(all) > statsTop {
		all = all[:statsTop]
	}
	if len(all) > 0 {
		fmt.Fprintln(out, "most viewed:")
	}
	for _, s := range all {
		fmt.Fprintf(out, "  %-30s %d\n", s.Slug, s.Views)
	}
	return nil
}

func cleanupCmd(ctx context.Context, snippets *service.SnippetService, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(errOut)
	days := fs.Int("days", 30, "delete snippets older than this many days")
	if err := fs.Parse(args); err != nil {
		return usageError("cleanup: " + err.Error())
	}

	maxAge, err := service.MaxAgeFromDays(*days)
	if err != nil {
		return err
	}

	removed, err := snippets.Cleanup(ctx, maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %d snippet(s) older than %d day(s)\n", removed, *days)
	return nil
}

// deleteCmd looks the secret key up itself: whoever can run this command
// already has the full dump.
func deleteCmd(ctx context.Context, snippets *service.SnippetService, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usageError("usage: cloakadmin delete <slug>")
	}

	snippet, err := snippets.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if err := snippets.Delete(ctx, snippet.Slug, snippet.SecretKey); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", snippet.Slug)
	return nil
}

func hashPassword(args []string, out, errOut io.Writer) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(errOut, "usage: cloakadmin hash-password <password>")
		return 2
	}
	hash, err := auth.NewPasswordService().Hash(args[0])
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	fmt.Fprintln(out, hash)
	return 0
}
