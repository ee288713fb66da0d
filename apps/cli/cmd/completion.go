package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hitlambda.

Verbs and declaration files are completed for invoke and stress.

Bash:
  $ source <(hitlambda completion bash)

Zsh:
  $ hitlambda completion zsh > "${fpath[1]}/_hitlambda"

Fish:
  $ hitlambda completion fish > ~/.config/fish/completions/hitlambda.fish

PowerShell:
  PS> hitlambda completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  usageArgs(cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

// completeDeclarations offers the verbs for the first argument, and
// declaration files everywhere.
func completeDeclarations(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var exts []string
	for _, ext := range parser.Extensions() {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	if len(args) > 0 {
		return exts, cobra.ShellCompDirectiveFilterFileExt
	}

	var verbs []string
	for _, v := range parser.Verbs {
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(toComplete)) {
			verbs = append(verbs, strings.ToLower(v)+"\tsend declarations without a slot as "+v)
		}
	}
	if len(verbs) == 0 {
		return exts, cobra.ShellCompDirectiveFilterFileExt
	}
	return verbs, cobra.ShellCompDirectiveDefault
}

func init() {
	invokeCmd.ValidArgsFunction = completeDeclarations
	stressCmd.ValidArgsFunction = completeDeclarations
	rootCmd.AddCommand(completionCmd)
}
