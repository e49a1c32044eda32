package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fishdan-plugins/jsonmaker/internal/config"
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/logger"
	"github.com/fishdan-plugins/jsonmaker/internal/search"
	"github.com/fishdan-plugins/jsonmaker/internal/service"
	"github.com/fishdan-plugins/jsonmaker/internal/slug"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
	"github.com/fishdan-plugins/jsonmaker/internal/store/sqlite"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
)

// errCheckFailed is returned by check when at least one tree is broken.
var errCheckFailed = errors.New("one or more trees failed validation")

// cli holds shared state for all commands.
type cli struct {
	dataPath string
	backend  string
	verbose  bool
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "jsonmakerctl",
		Short:        "Inspect and maintain jsonmaker bookmark trees",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&c.dataPath, "data-path", "", "Data directory (default: DATA_PATH or ~/jsonmaker/data)")
	root.PersistentFlags().StringVar(&c.backend, "storage-backend", "", "badger or sqlite (default: STORAGE_BACKEND or badger)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(c.accountsCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.resetCommand())
	root.AddCommand(c.checkCommand())

	return root
}

func (c *cli) accountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with a stored tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, err := c.openStore(true)
			if err != nil {
				return err
			}
			defer st.Close()

			accounts, err := st.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, account := range accounts {
				fmt.Fprintln(cmd.OutOrStdout(), account)
			}
			return nil
		},
	}
}

func (c *cli) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <account> [slug]",
		Short: "Print the public JSON of a tree or of one node",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := c.openStore(true)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.GetTree(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			node := rec.Root
			if len(args) == 2 {
				if node = tree.FindByID(rec.Root, slug.Resolve(args[1])); node == nil {
					return fmt.Errorf("node %q not found in %s", args[1], args[0])
				}
			}
			return writePretty(cmd.OutOrStdout(), tree.ToPublic(node))
		},
	}
}

func (c *cli) exportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <account>",
		Short: "Write the stored tree record, slugs included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := c.openStore(true)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.GetTree(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out == "" {
				return writePretty(cmd.OutOrStdout(), rec)
			}
			f, err := os.Create(out) //#nosec G304 -- Output path is chosen by the operator
			if err != nil {
				return err
			}
			if err := writePretty(f, rec); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to file instead of stdout")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	var (
		mode   string
		target string
	)

	cmd := &cobra.Command{
		Use:   "import <account> <file>",
		Short: "Import a JSON document into an account's tree",
		Long:  "Replaces the tree with the document, or appends it under --target with --mode append. A rejected import leaves the tree untouched.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			trees, closeFn, err := c.treeService()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := trees.ImportJSON(cmd.Context(), args[0], payload, mode, target)
			if err != nil {
				return err
			}
			return reportResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "replace", "replace or append")
	cmd.Flags().StringVar(&target, "target", "", "Slug of the node to append under")
	return cmd
}

func (c *cli) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <account>",
		Short: "Replace an account's tree with the seed tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trees, closeFn, err := c.treeService()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := trees.Reset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return reportResult(cmd.OutOrStdout(), res)
		},
	}
}

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the structure of every stored tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, err := c.openStore(true)
			if err != nil {
				return err
			}
			defer st.Close()

			return checkTrees(cmd.Context(), cmd.OutOrStdout(), st)
		},
	}
}

func checkTrees(ctx context.Context, w io.Writer, st store.TreeStore) error {
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return err
	}

	broken := 0
	for _, account := range accounts {
		rec, err := st.GetTree(ctx, account)
		if err == nil {
			err = tree.Validate(rec.Root)
		}
		if err != nil {
			broken++
			fmt.Fprintf(w, "FAIL %s: %v\n", account, err)
			continue
		}
		fmt.Fprintf(w, "ok   %s (%d nodes, revision %s)\n", account, tree.Count(rec.Root), rec.Revision)
	}

	if broken > 0 {
		return errCheckFailed
	}
	return nil
}

// openStore opens the configured tree store. Read-only access is honoured by
// the badger backend so inspection can run next to a live server.
func (c *cli) openStore(readOnly bool) (store.TreeStore, *config.Config, error) {
	var args []string
	if c.dataPath != "" {
		args = append(args, "--data-path", c.dataPath)
	}
	if c.backend != "" {
		args = append(args, "--storage-backend", c.backend)
	}
	cfg, err := config.Load(args)
	if err != nil {
		return nil, nil, err
	}

	log := c.logger()
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		st, err := sqlite.Open(cfg.Storage.SQLiteFile(), log, nil)
		return st, cfg, err
	case config.BackendBadger:
		st, err := store.Open(cfg.Storage.BadgerDir(), log, nil, store.Options{ReadOnly: readOnly})
		return st, cfg, err
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// treeService opens the store for writing and wraps it in a tree service.
// With search enabled every change marks the index stale, so the server
// rebuilds it on its next start.
func (c *cli) treeService() (*service.TreeService, func(), error) {
	st, cfg, err := c.openStore(false)
	if err != nil {
		return nil, nil, err
	}
	trees := service.NewTreeService(st, service.SeedConfig{
		Title: cfg.Seed.Title,
		Value: cfg.Seed.Value,
	}, c.logger())
	if cfg.Search.Enabled {
		trees.SetIndexer(staleIndex{path: cfg.Search.IndexPath})
	}
	return trees, func() { _ = st.Close() }, nil
}

// staleIndex stands in for the search index, which a running server holds
// open exclusively.
type staleIndex struct {
	path string
}

func (s staleIndex) IndexTree(context.Context, string, *domain.Node) error {
	return search.MarkStale(s.path)
}

func (s staleIndex) RemoveAccount(context.Context, string) error {
	return search.MarkStale(s.path)
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return logger.New(logger.Config{
		Writer: os.Stderr,
		Level:  level,
	}).Logger
}

func writePretty(w io.Writer, v any) error {
	body, err := domain.MarshalPretty(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}

// reportResult prints a tree operation result and turns a rejected
// operation into an error so the exit status reflects it.
func reportResult(w io.Writer, res *service.Result) error {
	if res.Success {
		fmt.Fprintf(w, "%s: %s (revision %s)\n", res.Code, res.Message, res.Revision)
		return nil
	}
	if res.Issue != nil {
		return fmt.Errorf("%s: %s", res.Code, res.Issue)
	}
	return fmt.Errorf("%s: %s", res.Code, res.Message)
}
