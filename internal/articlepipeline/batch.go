package articlepipeline

import (
	"context"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

const (
	batchFlushSize  = 100
	batchFlushEvery = 500 * time.Millisecond
)

// statusWriter funnels article status updates through a bounded channel
// to a single goroutine that flushes in batches, so a busy pipeline never
// blocks worker goroutines on individual store writes.
type statusWriter struct {
	st      *store.Store
	updates chan store.ArticleStatusUpdate
	done    chan struct{}
}

func newStatusWriter(st *store.Store) *statusWriter {
	return &statusWriter{
		st:      st,
		updates: make(chan store.ArticleStatusUpdate, batchFlushSize*2),
		done:    make(chan struct{}),
	}
}

func (w *statusWriter) enqueue(u store.ArticleStatusUpdate) {
	w.updates <- u
}

// run drains updates until the channel is closed, flushing on size or
// time threshold, then performs a final flush before returning.
func (w *statusWriter) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(batchFlushEvery)
	defer ticker.Stop()

	buf := make([]store.ArticleStatusUpdate, 0, batchFlushSize)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		_ = w.st.UpdateArticlesStatusBatch(ctx, buf)
		buf = buf[:0]
	}

	for {
		select {
		case u, ok := <-w.updates:
			if !ok {
				flush()
				return
			}
			buf = append(buf, u)
			if len(buf) >= batchFlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// closeAndWait closes the input channel and blocks until the final flush
// has completed, draining whatever was enqueued before the call.
func (w *statusWriter) closeAndWait() {
	close(w.updates)
	<-w.done
}
