package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/dcnnt/dcnntd/internal/cliutil"
	"github.com/dcnnt/dcnntd/internal/config"
)

var docSchemaOutput string

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Print configuration schema and plugin/method reference",
	Long: `Generate a JSON schema for conf.json and print a reference table of
every registered plugin and the methods it answers.

Examples:
  dcnntd doc
  dcnntd doc --schema-output conf.schema.json`,
	RunE: runDoc,
}

func init() {
	docCmd.Flags().StringVar(&docSchemaOutput, "schema-output", "", "Write the conf.json JSON schema to this file instead of stdout")
}

// pluginMethod describes one plugin method for the "dcnntd doc" reference
// table; kept in sync with spec §4.7's plugin contracts by hand since the
// dispatcher itself has no introspection API.
type pluginMethod struct {
	plugin, method, summary string
}

var pluginMethods = []pluginMethod{
	{"file", "list", "tree of shared directories"},
	{"file", "upload", "receive a file into the configured download directory"},
	{"file", "download", "send a shared file by index"},
	{"open", "open_file", "receive a file then open it with the configured handler"},
	{"open", "open_link", "open a URL with the configured handler"},
	{"rcmd", "list", "enumerate configured shell commands"},
	{"rcmd", "exec", "run a configured shell command by index"},
	{"nots", "notification", "display a desktop notification, optionally with an icon"},
	{"clip", "list", "enumerate configured clipboards and their capabilities"},
	{"clip", "read", "read from a configured clipboard"},
	{"clip", "write", "write to a configured clipboard"},
	{"sync", "dir_list", "reconcile a client file listing against a shared directory"},
	{"sync", "dir_upload", "receive a file into a shared sync directory"},
	{"sync", "dir_download", "send a file from a shared sync directory"},
}

func runDoc(cmd *cobra.Command, args []string) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "dcnntd configuration"
	schema.Description = "Schema for conf.json, the dcnntd server configuration file"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if docSchemaOutput != "" {
		if err := os.WriteFile(docSchemaOutput, schemaJSON, 0o644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", docSchemaOutput)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Plugins and methods:")

	table := cliutil.NewTableData("PLUGIN", "METHOD", "SUMMARY")
	for _, m := range pluginMethods {
		table.AddRow(m.plugin, m.method, m.summary)
	}
	return cliutil.PrintTable(cmd.OutOrStdout(), table)
}
