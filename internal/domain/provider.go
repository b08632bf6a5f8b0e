package domain

import (
	"context"
	"io"
)

// ServerConfig describes one configured NNTP server (§6 External Interfaces).
type ServerConfig struct {
	ID             string
	Host           string
	Port           int
	TLS            bool
	Username       string
	Password       string
	Connections    int
	Priority       int
	PipelineDepth  int
}

// Provider is the pool's view of a single NNTP server: everything the
// article pipeline needs to fetch a segment, independent of how the wire
// protocol is implemented underneath.
type Provider interface {
	ID() string
	Priority() int
	MaxConnections() int
	Fetch(ctx context.Context, messageID string) (io.ReadCloser, error)
	Close() error
}
