package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
	"github.com/iammrherb/authensi-smart-sub008/internal/scoping"
)

func newService(cmd *cobra.Command, budget time.Duration) (*scoping.Service, error) {
	cat, err := loadCatalog(cmd)
	if err != nil {
		return nil, err
	}
	holder := catalog.NewHolder()
	path, _ := cmd.Flags().GetString("catalog")
	holder.Swap(cat, "file:"+path)
	return &scoping.Service{Catalogs: scoping.FromHolder(holder), Budget: budget}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newAnalyzeCmd() *cobra.Command {
	var contextPath string
	var budget time.Duration
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Evaluate a context and print recommendations and blockers",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd, budget)
			if err != nil {
				return err
			}
			input, err := readContext(cmd, contextPath)
			if err != nil {
				return err
			}
			analysis, err := svc.AnalyzeContext(commandContext(cmd), input)
			if err != nil {
				return err
			}
			return printJSON(cmd, analysis.Evaluation)
		},
	}
	cmd.Flags().StringVar(&contextPath, "context", "-", "Context document, or - for stdin")
	cmd.Flags().DurationVar(&budget, "budget", 0, "Evaluation time budget (0 disables)")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var contextPath string
	var selectIDs []string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Evaluate a context and plan the resulting recommendations",
		Long:  `plan evaluates the context, keeps the recommendations named by --select (all when empty) and prints the checklist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd, 0)
			if err != nil {
				return err
			}
			input, err := readContext(cmd, contextPath)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			analysis, err := svc.AnalyzeContext(ctx, input)
			if err != nil {
				return err
			}
			result, err := svc.GenerateChecklist(ctx, input, selectRecommendations(analysis.Recommendations, selectIDs))
			if err != nil {
				return err
			}
			return printJSON(cmd, result.Checklist)
		},
	}
	cmd.Flags().StringVar(&contextPath, "context", "-", "Context document, or - for stdin")
	cmd.Flags().StringSliceVar(&selectIDs, "select", nil, "Recommendation ids to plan")
	return cmd
}

func selectRecommendations(recs []engine.Recommendation, ids []string) []engine.Recommendation {
	if len(ids) == 0 {
		return recs
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	out := make([]engine.Recommendation, 0, len(ids))
	for _, r := range recs {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
