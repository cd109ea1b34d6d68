package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vaultgraph/internal/query"
)

func main() {
	var vaultRoot string

	rootCmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Index and query a markdown vault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&vaultRoot, "vault", "", "Vault root directory (defaults to VAULT_ROOT)")

	var force bool
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Bring the index up to date with the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(vaultRoot)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.indexer.Reindex(cmd.Context(), a.root, force)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d documents failed to index", report.Failed)
			}
			return nil
		},
	}
	indexCmd.Flags().BoolVar(&force, "force", false, "Reindex every document regardless of fingerprints")

	var (
		mode  string
		limit int
	)
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the vault: semantic (default), lexical or hybrid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(vaultRoot)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.service.Search(cmd.Context(), query.SearchRequest{
				WorkspacePath:     a.root,
				Query:             args[0],
				EmbeddingProvider: a.provider,
				EmbeddingModel:    a.model,
				Mode:              query.Mode(mode),
				Limit:             limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	searchCmd.Flags().StringVar(&mode, "mode", string(query.ModeSemantic), "Search mode: semantic, lexical or hybrid")
	searchCmd.Flags().IntVar(&limit, "limit", query.DefaultLimit, "Maximum number of results")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the vault link graph with its render profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(vaultRoot)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.service.Graph(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		},
	}

	backlinksCmd := &cobra.Command{
		Use:   "backlinks [path]",
		Short: "List documents linking to a vault-relative path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(vaultRoot)
			if err != nil {
				return err
			}
			defer a.Close()

			backlinks, err := a.service.Backlinks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), backlinks)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index coverage for the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(vaultRoot)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	rootCmd.AddCommand(indexCmd, searchCmd, graphCmd, backlinksCmd, statsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}
