// Package httputil provides JSON response helpers shared by all API
// handlers.
package httputil
