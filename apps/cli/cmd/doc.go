// Package cmd implements the hitlambda CLI commands using Cobra.
//
// Available commands:
//   - invoke: Send the declarations of a file and print the results
//   - validate: Check declaration files against the declaration schema
//   - list: Display the declarations of files
//   - stress: Replay declarations at a target rate or with virtual users
//   - init: Create a config file and an example declaration
//   - import: Generate declaration files from curl commands or OpenAPI documents
//   - completion: Generate shell completion scripts
//   - version: Show hitlambda version information
//
// Settings come from .hitlambda.json, then HITLAMBDA_* environment
// variables, then flags.
package cmd
