// Package http provides the default transport for invocations.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts
//   - Redirect handling
//   - Proxy support
//   - Debug dumps of requests and responses through zerolog
package http
