package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/import/curl"
	"github.com/abdul-hamid-achik/hitlambda/packages/import/openapi"
)

var (
	importOutputFlag string
	importFormatFlag string
	importDirFlag    string

	importBaseURLFlag     string
	importTagsFlag        []string
	importExcludeTagsFlag []string
	importOperationsFlag  []string
	importNoConvertFlag   bool
)

var importCmd = &cobra.Command{
	Use:   "import <source> <input>",
	Short: "Generate declaration files from curl commands or OpenAPI documents",
	Long: `Generate declaration files from other descriptions of HTTP requests.

Supported sources:
  curl    - a curl command line, or a file of curl commands
  openapi - an OpenAPI 3 document (YAML or JSON, file or URL)

The output format follows the extension of --output-file, or --format.
YAML and JSON files hold one declaration per verb: write Hyperlambda, or use
--dir to get one file per declaration.

Examples:
  hitlambda import curl 'curl -H "Accept: application/json" https://api.example.com/users'
  hitlambda import curl commands.sh -o users.hl
  hitlambda import openapi openapi.yaml --dir declarations/
  hitlambda import openapi https://api.example.com/openapi.json --tags users -o users.hl`,
}

var importCurlCmd = &cobra.Command{
	Use:   "curl <command|file>",
	Short: "Import curl commands",
	Long: `Import a curl command line, or a file with one curl command per line.

Lines ending with a backslash continue on the next line. A bearer
Authorization header becomes [token] and a JSON body becomes a payload tree.

Examples:
  hitlambda import curl 'curl -X POST -d "{\"name\":\"John\"}" https://api.example.com/users'
  hitlambda import curl -- curl -X DELETE https://api.example.com/users/1
  hitlambda import curl commands.sh --dir declarations/`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: importCurlCommand,
}

var importOpenAPICmd = &cobra.Command{
	Use:   "openapi <document|url>",
	Short: "Import an OpenAPI document",
	Long: `Generate one declaration per GET, POST, PUT, PATCH and DELETE operation of an
OpenAPI 3 document.

URLs start with {{baseUrl}}, taken from the first server of the document
unless --base-url is given. Path parameters become variables seeded with
example values and request bodies become payload trees.

Examples:
  hitlambda import openapi openapi.yaml -o api.hl
  hitlambda import openapi openapi.yaml --tags users,auth --dir declarations/
  hitlambda import openapi openapi.yaml --base-url http://localhost:3000`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: importOpenAPICommand,
}

func init() {
	for _, c := range []*cobra.Command{importCurlCmd, importOpenAPICmd} {
		c.Flags().StringVarP(&importOutputFlag, "output-file", "o", "", "Write to a file instead of stdout")
		c.Flags().StringVar(&importFormatFlag, "format", "", "Output format (yaml, json, hyperlambda)")
		c.Flags().StringVar(&importDirFlag, "dir", "", "Write one file per declaration to a directory")
		c.Flags().BoolVar(&importNoConvertFlag, "no-convert", false, "Do not set [convert] on generated declarations")
	}

	importOpenAPICmd.Flags().StringVar(&importBaseURLFlag, "base-url", "", "Override the base URL of the document")
	importOpenAPICmd.Flags().StringSliceVar(&importTagsFlag, "tags", nil, "Only import operations with these tags")
	importOpenAPICmd.Flags().StringSliceVar(&importExcludeTagsFlag, "exclude-tags", nil, "Skip operations with these tags")
	importOpenAPICmd.Flags().StringSliceVar(&importOperationsFlag, "operations", nil, "Only import these operation IDs")

	importCmd.AddCommand(importCurlCmd)
	importCmd.AddCommand(importOpenAPICmd)
}

func importCurlCommand(cmd *cobra.Command, args []string) error {
	converter := curl.NewConverter(curl.WithConvert(!importNoConvertFlag))

	var file *parser.File
	var err error
	if info, statErr := os.Stat(args[0]); len(args) == 1 && statErr == nil && !info.IsDir() {
		file, err = converter.ConvertFile(args[0])
	} else {
		file, err = converter.ConvertCommand(strings.Join(args, " "))
	}
	if err != nil {
		return withCode(ExitParseError, fmt.Errorf("failed to convert curl command: %w", err))
	}
	return writeImport(cmd, file)
}

func importOpenAPICommand(cmd *cobra.Command, args []string) error {
	opts := []openapi.Option{
		openapi.WithConvert(!importNoConvertFlag),
		openapi.WithLogger(logger),
	}
	if importBaseURLFlag != "" {
		opts = append(opts, openapi.WithBaseURL(importBaseURLFlag))
	}
	if len(importTagsFlag) > 0 {
		opts = append(opts, openapi.WithTags(importTagsFlag))
	}
	if len(importExcludeTagsFlag) > 0 {
		opts = append(opts, openapi.WithExcludeTags(importExcludeTagsFlag))
	}
	if len(importOperationsFlag) > 0 {
		opts = append(opts, openapi.WithOperations(importOperationsFlag))
	}

	file, err := openapi.NewConverter(opts...).ConvertFile(cmd.Context(), args[0])
	if err != nil {
		return withCode(ExitParseError, fmt.Errorf("failed to convert OpenAPI document: %w", err))
	}
	return writeImport(cmd, file)
}

var formatExtensions = map[string]string{
	codec.YAML:        ".yaml",
	codec.JSON:        ".json",
	codec.Hyperlambda: ".hl",
}

// importFormat picks the output format: --format, then the extension of
// --output-file, then YAML for --dir and Hyperlambda otherwise.
func importFormat() (string, error) {
	if importFormatFlag != "" {
		if _, ok := formatExtensions[importFormatFlag]; !ok {
			return "", fmt.Errorf("unknown format %q (expected yaml, json or hyperlambda)", importFormatFlag)
		}
		return importFormatFlag, nil
	}
	if importOutputFlag != "" {
		if format, ok := parser.FormatOf(importOutputFlag); ok {
			return format, nil
		}
	}
	if importDirFlag != "" {
		return codec.YAML, nil
	}
	return codec.Hyperlambda, nil
}

func writeImport(cmd *cobra.Command, file *parser.File) error {
	format, err := importFormat()
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	c := codec.New()

	if importDirFlag != "" {
		if err := os.MkdirAll(importDirFlag, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		used := make(map[string]int)
		for _, decl := range file.Declarations {
			doc, err := parser.Document(format, file.Variables, decl)
			if err != nil {
				return withCode(ExitParseError, err)
			}
			text, err := c.Encode(cmd.Context(), format, doc)
			if err != nil {
				return err
			}

			name := decl.Name
			if name == "" {
				name = fmt.Sprintf("%s_%d", strings.ToLower(decl.Verb), decl.Index)
			}
			if n := used[name]; n > 0 {
				used[name]++
				name = fmt.Sprintf("%s_%d", name, n)
			} else {
				used[name] = 1
			}

			path := filepath.Join(importDirFlag, name+formatExtensions[format])
			if err := os.WriteFile(path, []byte(text), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		}
		return nil
	}

	doc, err := parser.Document(format, file.Variables, file.Declarations...)
	if err != nil {
		return withCode(ExitParseError, err)
	}
	text, err := c.Encode(cmd.Context(), format, doc)
	if err != nil {
		return err
	}

	if importOutputFlag == "" {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}
	if dir := filepath.Dir(importOutputFlag); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(importOutputFlag, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d declaration(s) to %s\n", len(file.Declarations), importOutputFlag)
	return nil
}
