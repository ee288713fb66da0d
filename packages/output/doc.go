// Package output renders invocation results.
//
// Supported output formats:
//   - console: colored terminal output with status, headers and content
//   - json: one JSON document holding every invocation
//   - yaml, hyperlambda: the result tree in the matching codec format
//   - junit: JUnit XML for CI integration
//   - tap: Test Anything Protocol
//
// Formatters that accumulate results before writing implement Flushable.
package output
