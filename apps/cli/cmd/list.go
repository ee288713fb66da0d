package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the declarations of files",
	Long: `List every declaration of the given files with its verb, URL and arguments.

Examples:
  hitlambda list users.yaml
  hitlambda list ./declarations/`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, fmt.Errorf("no declaration files found (.yaml, .yml, .json, .hl)"))
	}

	out := cmd.OutOrStdout()
	var failed error
	for _, path := range files {
		f, err := parser.ParseFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", path, err)
			if failed == nil {
				failed = err
			}
			continue
		}

		fmt.Fprintf(out, "\n%s:\n", path)
		for _, decl := range f.Declarations {
			verb := decl.Verb
			if verb == "" {
				verb = "?"
			}
			fmt.Fprintf(out, "  - %s %s\n", verb, decl.URL())

			var argNames []string
			for _, c := range decl.Node.Children() {
				argNames = append(argNames, c.Name)
			}
			if len(argNames) > 0 {
				fmt.Fprintf(out, "    %s\n", strings.Join(argNames, ", "))
			}
			if c := decl.Node.Child(invoke.ArgFilename); c != nil {
				fmt.Fprintf(out, "    file: %s\n", c.Value.Text())
			}
		}
		if len(f.Variables) > 0 {
			fmt.Fprintf(out, "  variables: %d\n", len(f.Variables))
		}
	}

	return withCode(ExitParseError, failed)
}
