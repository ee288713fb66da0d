// Package env resolves references in declarations.
//
// It provides:
//   - A node.Resolver over variables, environment variables, built-in
//     function calls and stored JSON documents
//   - {{expr}} expansion inside plain strings
//   - Loading variables from .env files, the process environment and named
//     environments in the config file
package env
