package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/db"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and compile the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			stats := cat.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s is valid: %d rules, %d conflicts, %d plan keys\n",
				stats.Version, stats.Rules, stats.Conflicts, len(stats.PlanKeys))
			return nil
		},
	}
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Report recommendations without plans and plans that cannot be combined",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			issues := catalog.Lint(cat)
			for _, issue := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "- %v\n", issue)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d lint issue(s)", len(issues))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "no lint issues")
			return nil
		},
	}
}

func newPublishCmd() *cobra.Command {
	var author, note string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Store the catalog as the active revision in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("catalog")
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
			if dsn == "" {
				return db.ErrNoDatabaseURL
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sqlDB, err := db.Connect(ctx, dsn, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			if err := db.RunMigrations(ctx, sqlDB); err != nil {
				return err
			}

			rev, _, err := catalog.PublishDocument(ctx, &catalog.PGRevisionRepo{DB: sqlDB}, raw, author, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published revision %s (version %s)\n", rev.ID, rev.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", os.Getenv("USER"), "Revision author")
	cmd.Flags().StringVar(&note, "note", "", "Revision note")
	return cmd
}
