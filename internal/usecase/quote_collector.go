package usecase

import (
	"context"
	"sync"
	"time"

	"SignalScan/internal/domain/models"
	drepo "SignalScan/internal/domain/repository"
	dservice "SignalScan/internal/domain/service"
)

// QuoteCollector consumes the live quote stream and keeps the most
// recent quote per symbol as a fallback reference price for scans.
type QuoteCollector struct {
	stream  dservice.QuoteSource
	metrics drepo.Metrics
	ttl     time.Duration

	mu     sync.RWMutex
	latest map[string]*models.Quote
}

// NewQuoteCollector creates a new QuoteCollector instance. Quotes older
// than ttl are treated as missing; ttl <= 0 keeps them forever.
func NewQuoteCollector(stream dservice.QuoteSource, metrics drepo.Metrics, ttl time.Duration) *QuoteCollector {
	return &QuoteCollector{
		stream:  stream,
		metrics: metrics,
		ttl:     ttl,
		latest:  make(map[string]*models.Quote),
	}
}

// IsConnected returns true if the quote stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	qCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, qCh, errCh)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context, qCh <-chan *models.Quote, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case q := <-qCh:
			if q == nil {
				continue
			}
			c.mu.Lock()
			c.latest[q.Symbol] = q
			c.mu.Unlock()
			c.metrics.RecordLastPrice(q.Symbol, q.Price)
		}
	}
}

// Latest returns the most recent quote seen for symbol. Stale quotes
// are not returned: a thin stream must not feed scans old prices.
func (c *QuoteCollector) Latest(symbol string) (*models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.latest[symbol]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(q.At) > c.ttl {
		return nil, false
	}
	return q, true
}

func (c *QuoteCollector) Stop() error { return c.stream.Close() }

var _ QuoteReader = (*QuoteCollector)(nil)
