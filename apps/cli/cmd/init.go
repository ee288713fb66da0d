package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitlambda project",
	Long: `Initialize a new hitlambda project in the current directory.

This creates:
  - .hitlambda.json - Configuration file with environments and a stress profile
  - example.yaml    - Example declaration file

Examples:
  hitlambda init
  hitlambda init --force`,
	Args: usageArgs(cobra.NoArgs),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

// exampleDeclarations is written by init. It uses every argument once.
const exampleDeclarations = `# Send with: hitlambda invoke example.yaml
variables:
  userAgent: hitlambda/1.0

http.get:
  url: "{{baseUrl}}/users/1"
  headers:
    Accept: application/json
    User-Agent: "{{userAgent}}"
  convert: true

http.post:
  url: "{{baseUrl}}/users"
  token: "{{$API_TOKEN}}"
  payload:
    name: "{{response.name}}"
    id: "{{uuid()}}"
  convert: true
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	projectConfig := config.DefaultConfig()
	projectConfig.Environments = map[string]map[string]any{
		"dev":     {"baseUrl": "http://localhost:3000"},
		"staging": {"baseUrl": "https://staging.api.example.com"},
		"prod":    {"baseUrl": "https://api.example.com"},
	}
	projectConfig.StressProfiles = map[string]config.StressProfile{
		"smoke": {
			Duration: "30s",
			Rate:     5,
		},
		"load": {
			Duration: "5m",
			Rate:     100,
			RampUp:   "30s",
			Thresholds: map[string]string{
				"p95":    "500ms",
				"errors": "1%",
			},
		},
	}

	if err := projectConfig.SaveConfig(configFile); err != nil {
		return withCode(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleDeclarations), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitlambda project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitlambda invoke example.yaml' to send the example declarations.\n")

	return nil
}
