package usecase

import (
	"context"
	"testing"
	"time"

	"SignalScan/internal/domain/models"
)

type fakeStream struct {
	qCh   chan *models.Quote
	errCh chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{qCh: make(chan *models.Quote, 8), errCh: make(chan error, 1)}
}

func (f *fakeStream) Connect(ctx context.Context) error   { return nil }
func (f *fakeStream) Subscribe(ctx context.Context) error { return nil }
func (f *fakeStream) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	return f.qCh, f.errCh
}
func (f *fakeStream) Reconnect(ctx context.Context) error { return nil }
func (f *fakeStream) Close() error                        { return nil }
func (f *fakeStream) IsConnected() bool                   { return true }

func TestQuoteCollectorKeepsLatest(t *testing.T) {
	stream := newFakeStream()
	c := NewQuoteCollector(stream, newCaptureMetrics(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stream.qCh <- &models.Quote{Symbol: "AAPL", Price: 100, At: time.Now()}
	stream.qCh <- &models.Quote{Symbol: "AAPL", Price: 101, At: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if q, ok := c.Latest("AAPL"); ok && q.Price == 101 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("latest quote never reached 101")
		}
		time.Sleep(time.Millisecond)
	}

	if _, ok := c.Latest("MSFT"); ok {
		t.Error("expected no quote for an unseen symbol")
	}
}

func TestQuoteCollectorExpiresStale(t *testing.T) {
	stream := newFakeStream()
	c := NewQuoteCollector(stream, newCaptureMetrics(), 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// stale first so it is stored by the time the fresh one is visible
	stream.qCh <- &models.Quote{Symbol: "STALE", Price: 20, At: time.Now().Add(-time.Minute)}
	stream.qCh <- &models.Quote{Symbol: "FRESH", Price: 10, At: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Latest("FRESH"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fresh quote never arrived")
		}
		time.Sleep(time.Millisecond)
	}

	if _, ok := c.Latest("STALE"); ok {
		t.Error("expected the stale quote to be treated as missing")
	}
}
