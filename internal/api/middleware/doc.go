// Package middleware holds the gin middleware of the debug API: CORS, rate
// limiting and request ids.
package middleware
