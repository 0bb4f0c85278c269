// Package middleware wires bounded body capture into an HTTP handler
// chain: the request body is shadowed by a capturing reader, the response
// writer by a capturing writer, and a post-action observes the bounded
// mirrors exactly once after the exchange truly ends, whether the handler
// finished synchronously or moved the exchange into asynchronous mode.
package middleware

import "net/http"

// Middleware defines a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Action is the post-processing callback. It runs exactly once per
// exchange, after completion, with the exchange's capture accessors.
type Action func(ex *Exchange)
