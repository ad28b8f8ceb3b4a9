// Package server holds the HTTP server configuration.
//
// The Config struct defines the listen port, the API key that protects every
// route, and the path prefixes (Swagger UI, Prometheus metrics) that stay
// public.
package server
