package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-book-catalog/config"
)

// retryQueue collects the failed requests of one crawl phase so they can be
// re-issued in bounded rounds. Retrying through colly's Request.Retry keeps
// the request context, so retried detail pages land in their original output
// slots and ordering survives.
type retryQueue struct {
	cfg     *config.Config
	metrics *Metrics

	mu     sync.Mutex
	failed []*colly.Request
	total  int
}

func newRetryQueue(cfg *config.Config, metrics *Metrics) *retryQueue {
	return &retryQueue{cfg: cfg, metrics: metrics}
}

// Add records a failed request for the next retry round.
func (q *retryQueue) Add(r *colly.Request) {
	if r == nil {
		return
	}
	q.mu.Lock()
	q.failed = append(q.failed, r)
	q.mu.Unlock()
}

// Take returns the currently failed requests and clears the queue.
func (q *retryQueue) Take() []*colly.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.failed
	q.failed = nil
	return batch
}

// TotalRetries reports how many retry attempts were issued.
func (q *retryQueue) TotalRetries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Drain re-issues failed requests for up to MaxRetries rounds with capped
// exponential backoff, waiting out the collector between rounds. Requests
// still failed after the final round remain in the queue.
func (q *retryQueue) Drain(ctx context.Context, c *colly.Collector) {
	for round := 1; round <= q.cfg.MaxRetries; round++ {
		batch := q.Take()
		if len(batch) == 0 {
			return
		}
		if ctx.Err() != nil {
			q.putBack(batch)
			return
		}

		time.Sleep(q.backoff(round))
		for _, req := range batch {
			q.mu.Lock()
			q.total++
			q.mu.Unlock()
			q.metrics.IncRetries()
			if err := req.Retry(); err != nil {
				slog.Debug("retry failed to issue",
					slog.String("url", req.URL.String()),
					slog.Any("error", err),
				)
				q.Add(req)
			}
		}
		c.Wait()
	}
}

func (q *retryQueue) putBack(batch []*colly.Request) {
	q.mu.Lock()
	q.failed = append(q.failed, batch...)
	q.mu.Unlock()
}

func (q *retryQueue) backoff(round int) time.Duration {
	if round <= 0 {
		round = 1
	}

	base := q.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(round-1))
	if max := q.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
