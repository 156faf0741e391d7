package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"budget/internal/backend"
	"budget/internal/core"
	"budget/internal/export"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Save every month of a JSON document for a user",
		Long: `Reads a document written by "budgetctl export --format json" and performs a
full save of its months. Months already stored are overwritten; months not in
the document are left alone.`,
		RunE: runImport,
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("file", "", "JSON document to read (- for stdin)")
	cmd.Flags().StringVar(&flags.strategy, "strategy", "", "full save strategy (bulk, diff)")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return errors.New("--file is required")
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	doc, err := export.ReadJSON(in)
	if err != nil {
		return err
	}
	if doc.UserID != "" && doc.UserID != user {
		fmt.Fprintf(cmd.ErrOrStderr(), "Importing %s's document as %s\n", doc.UserID, user)
	}

	_, res, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Close()

	report := res.Syncer.SaveAllMonths(cmd.Context(), user, doc.Months)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d of %d months\n", len(report.Saved), len(doc.Months))
	return report.Err()
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's months as JSON or an xlsx workbook",
		RunE:  runExport,
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("file", "-", "output file (- for stdout)")
	cmd.Flags().String("format", "json", "output format (json, xlsx)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "xlsx" {
		return fmt.Errorf("unknown format %q: must be json or xlsx", format)
	}
	path, _ := cmd.Flags().GetString("file")

	cfg, res, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Close()

	months, err := res.Syncer.LoadAllMonths(cmd.Context(), user)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if format == "xlsx" {
		return export.WriteWorkbook(out, user, months, core.LocaleFor(cfg.Locale))
	}
	return export.WriteJSON(out, export.NewDocument(user, months, time.Now()))
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for the configured SQL backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			bc, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			if err := backend.Migrate(bc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied for %s backend\n", bc.Type)
			return nil
		},
	}
}
