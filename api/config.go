// Package api provides the HTTP API for engram's memory store and agent.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DefaultTopK is used when a retrieval request does not give top_k.
	DefaultTopK int
}
