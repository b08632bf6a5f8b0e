// Package providerpool implements the per-server NNTP connection pools
// with priority-ordered failover described in spec §4.4.
package providerpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/nntpwire"
)

// server manages up to cfg.Connections concurrent leases against one NNTP
// server, lazily dialling new connections up to that cap and recycling
// released ones via a buffered channel.
type server struct {
	cfg domain.ServerConfig

	mu     sync.Mutex
	idle   chan *nntpwire.Conn
	dialed int
}

func newServer(cfg domain.ServerConfig) *server {
	if cfg.Connections < 1 {
		cfg.Connections = 1
	}
	return &server{
		cfg:  cfg,
		idle: make(chan *nntpwire.Conn, cfg.Connections),
	}
}

func (s *server) ID() string          { return s.cfg.ID }
func (s *server) Priority() int       { return s.cfg.Priority }
func (s *server) MaxConnections() int { return s.cfg.Connections }

// PipelineDepth is the server's configured pipeline_depth, floored at 1
// (a connection always supports at least one outstanding BODY command).
func (s *server) PipelineDepth() int {
	if s.cfg.PipelineDepth < 1 {
		return 1
	}
	return s.cfg.PipelineDepth
}

// lease acquires a connection without blocking: an idle one if there is
// one, otherwise a newly dialled one if under capacity. Returns
// (nil, false) if the server is at capacity and none are idle — the
// caller should treat this as "busy" and try the next server or retry
// later.
func (s *server) lease(ctx context.Context) (*nntpwire.Conn, bool, error) {
	select {
	case c := <-s.idle:
		return c, true, nil
	default:
	}

	s.mu.Lock()
	if s.dialed < s.cfg.Connections {
		s.dialed++
		s.mu.Unlock()
		conn, err := nntpwire.Dial(s.cfg)
		if err != nil {
			s.mu.Lock()
			s.dialed--
			s.mu.Unlock()
			return nil, true, err
		}
		return conn, true, nil
	}
	s.mu.Unlock()
	return nil, false, nil
}

func (s *server) release(c *nntpwire.Conn, retire bool) {
	if retire {
		c.Close()
		s.mu.Lock()
		s.dialed--
		s.mu.Unlock()
		return
	}
	select {
	case s.idle <- c:
	default:
		c.Close()
		s.mu.Lock()
		s.dialed--
		s.mu.Unlock()
	}
}

func (s *server) closeAll() {
	close(s.idle)
	for c := range s.idle {
		c.Close()
	}
}

func (s *server) String() string {
	return fmt.Sprintf("%s(priority=%d)", s.cfg.ID, s.cfg.Priority)
}
