package providerpool

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// RetryConfig controls the exponential backoff applied to transient NNTP
// faults (spec §4.4: "initial 1s, multiplier 2, cap 60s, max_attempts
// configurable").
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig matches the spec's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 60 * time.Second, BackoffMultiplier: 2}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	d := float64(r.InitialDelay) * math.Pow(r.BackoffMultiplier, float64(attempt))
	if d > float64(r.MaxDelay) {
		d = float64(r.MaxDelay)
	}
	jitter := d * (0.5 + rand.Float64()*0.5)
	return time.Duration(jitter)
}

// Pool holds every configured server sorted by ascending priority and
// implements the fetch/failover contract of spec §4.4.
type Pool struct {
	logger  Logger
	servers []*server
	retry   RetryConfig
}

// Logger is the minimal logging surface the pool needs; satisfied by
// infra/logger.Logger.
type Logger interface {
	Debug(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// New builds a pool from server configs, sorted ascending by priority.
func New(configs []domain.ServerConfig, retry RetryConfig, logger Logger) *Pool {
	if logger == nil {
		logger = noopLogger{}
	}
	servers := make([]*server, 0, len(configs))
	for _, c := range configs {
		servers = append(servers, newServer(c))
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Priority() < servers[j].Priority() })
	return &Pool{logger: logger, servers: servers, retry: retry}
}

// TotalCapacity is the sum of every server's configured connection count;
// used to size the article pipeline's worker pool.
func (p *Pool) TotalCapacity() int {
	total := 0
	for _, s := range p.servers {
		total += s.MaxConnections()
	}
	return total
}

// Empty reports whether the pool has no server at all; an empty pool can
// still exist transiently during shutdown.
func (p *Pool) Empty() bool { return len(p.servers) == 0 }

// Fetch implements the priority failover and per-server lease/backoff
// contract. missingFrom accumulates server IDs that answered 430 for this
// message id across repeated calls on the same *Article.
func (p *Pool) Fetch(ctx context.Context, messageID string, missingFrom map[string]bool) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if missingFrom == nil {
		missingFrom = make(map[string]bool)
	}

	var lastErr error
	anyBusy := false

	for _, s := range p.servers {
		if missingFrom[s.ID()] {
			continue
		}

		conn, ok, err := s.lease(ctx)
		if !ok {
			anyBusy = true
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}

		body, ferr := p.fetchWithRetry(ctx, conn, messageID)
		if ferr != nil {
			if errors.Is(ferr, domain.ErrArticleNotFound) {
				p.logger.Debug("provider %s: 430 for %s, marking missing", s.ID(), messageID)
				missingFrom[s.ID()] = true
				s.release(conn, false)
				continue
			}
			p.logger.Debug("provider %s: fetch error for %s: %v", s.ID(), messageID, ferr)
			s.release(conn, true)
			lastErr = ferr
			continue
		}

		return &leaseReader{ReadCloser: body, release: func() { s.release(conn, false) }}, nil
	}

	if len(missingFrom) == len(p.servers) && len(p.servers) > 0 {
		return nil, domain.ErrAllServersExhausted
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if anyBusy {
		return nil, domain.ErrProviderBusy
	}
	return nil, domain.ErrAllServersExhausted
}

// PipelineDepth is the largest pipeline_depth configured across every
// server in the pool; callers use it to size how many articles they batch
// into a single FetchBatch call. FetchBatch itself chunks further to
// whichever single server ends up leased, since depth is per-connection.
func (p *Pool) PipelineDepth() int {
	depth := 1
	for _, s := range p.servers {
		if d := s.PipelineDepth(); d > depth {
			depth = d
		}
	}
	return depth
}

// FetchBatch leases a single connection and pipelines every message in
// messageIDs on it, chunked to the leased server's pipeline_depth, per
// spec §4.4's "fetch_batch pipelines within a single lease" requirement.
// Results are returned in request order; a nil error with a nil reader
// never happens — each index has exactly one of the two set. missingFrom
// is updated in place exactly as Fetch does, for 430 responses.
func (p *Pool) FetchBatch(ctx context.Context, messageIDs []string, missingFrom map[string]bool) ([]io.ReadCloser, []error) {
	readers := make([]io.ReadCloser, len(messageIDs))
	errs := make([]error, len(messageIDs))
	if len(messageIDs) == 0 {
		return readers, errs
	}
	if err := ctx.Err(); err != nil {
		for i := range errs {
			errs[i] = err
		}
		return readers, errs
	}
	if missingFrom == nil {
		missingFrom = make(map[string]bool)
	}

	var lastErr error
	anyBusy := false

	for _, s := range p.servers {
		if missingFrom[s.ID()] {
			continue
		}

		conn, ok, err := s.lease(ctx)
		if !ok {
			anyBusy = true
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}

		depth := s.PipelineDepth()
		var pending int32
		release := func() {
			if atomic.AddInt32(&pending, -1) == 0 {
				s.release(conn, false)
			}
		}

		for start := 0; start < len(messageIDs); start += depth {
			end := start + depth
			if end > len(messageIDs) {
				end = len(messageIDs)
			}
			chunkReaders, chunkErrs := conn.PipelineBodies(messageIDs[start:end])
			for i, r := range chunkReaders {
				idx := start + i
				if chunkErrs[i] != nil {
					if errors.Is(chunkErrs[i], domain.ErrArticleNotFound) {
						p.logger.Debug("provider %s: 430 for %s, marking missing", s.ID(), messageIDs[idx])
						missingFrom[s.ID()] = true
					}
					errs[idx] = chunkErrs[i]
					continue
				}
				atomic.AddInt32(&pending, 1)
				readers[idx] = &leaseReader{ReadCloser: io.NopCloser(r), release: release}
			}
		}
		if atomic.LoadInt32(&pending) == 0 {
			s.release(conn, false)
		}
		return readers, errs
	}

	var overallErr error
	switch {
	case len(missingFrom) == len(p.servers) && len(p.servers) > 0:
		overallErr = domain.ErrAllServersExhausted
	case lastErr != nil:
		overallErr = lastErr
	case anyBusy:
		overallErr = domain.ErrProviderBusy
	default:
		overallErr = domain.ErrAllServersExhausted
	}
	for i := range errs {
		if errs[i] == nil {
			errs[i] = overallErr
		}
	}
	return readers, errs
}

func (p *Pool) fetchWithRetry(ctx context.Context, conn connBody, messageID string) (io.ReadCloser, error) {
	var lastErr error
	attempts := p.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		r, err := conn.Body(messageID)
		if err == nil {
			rc, ok := r.(io.ReadCloser)
			if !ok {
				rc = io.NopCloser(r)
			}
			return rc, nil
		}
		if errors.Is(err, domain.ErrArticleNotFound) {
			return nil, err
		}
		lastErr = err
		select {
		case <-time.After(p.retry.delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// connBody is the subset of *nntpwire.Conn the pool exercises; extracted
// as an interface so tests can fake a server without a real socket.
type connBody interface {
	Body(messageID string) (io.Reader, error)
}

type leaseReader struct {
	io.ReadCloser
	release func()
	once    sync.Once
}

func (l *leaseReader) Close() error {
	l.once.Do(l.release)
	return nil
}

// Close tears down every idle connection in every server pool.
func (p *Pool) Close() {
	for _, s := range p.servers {
		s.closeAll()
	}
}
