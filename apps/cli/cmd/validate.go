package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate declaration files without sending them",
	Long: `Parse declaration files and check every declaration against the
declaration schema. Nothing is sent and {{expr}} placeholders are left alone.

Examples:
  hitlambda validate users.yaml
  hitlambda validate ./declarations/
  hitlambda validate users.yaml --schema strict.json`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: validateCommand,
}

var validateSchemaFlag string

func init() {
	validateCmd.Flags().StringVar(&validateSchemaFlag, "schema", "", "JSON schema file used instead of the built-in declaration schema")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, fmt.Errorf("no declaration files found (.yaml, .yml, .json, .hl)"))
	}

	validator, err := newValidator(validateSchemaFlag)
	if err != nil {
		return withCode(ExitConfigError, err)
	}

	hasErrors := false
	for _, path := range files {
		file, err := parser.ParseFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", path, err)
			hasErrors = true
			continue
		}

		result, err := validator.Validate(file)
		if err != nil {
			return err
		}
		if !result.Valid() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %v\n", result.Err())
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d declaration(s))\n", path, len(file.Declarations))
	}

	if hasErrors {
		return withCode(ExitParseError, fmt.Errorf("validation failed"))
	}
	return nil
}

func newValidator(path string) (*schema.Validator, error) {
	if path == "" {
		return schema.New()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return schema.NewFromBytes(data)
}
