package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scopectl",
		Short:         "Validate scoping catalogs and run them against a context",
		Long:          `scopectl checks catalog documents, evaluates contexts offline and publishes catalog revisions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("catalog", "catalog.yaml", "Path to the catalog document (YAML or JSON)")

	root.AddCommand(
		newValidateCmd(),
		newLintCmd(),
		newAnalyzeCmd(),
		newPlanCmd(),
		newPublishCmd(),
	)
	return root
}

func loadCatalog(cmd *cobra.Command) (*catalog.Static, error) {
	path, _ := cmd.Flags().GetString("catalog")
	doc, err := catalog.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return catalog.Compile(doc)
}

// readContext decodes a context document from path, or stdin when path is "-".
// YAML is accepted since it is a superset of JSON.
func readContext(cmd *cobra.Command, path string) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if err := yaml.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return input, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
