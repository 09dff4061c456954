// Package events publishes fire-and-forget notifications about token activity
// to downstream services.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

// Event names.
const (
	UserSession     = "user_session"
	RefreshBalances = "refresh_balances"
)

// Event is one notification. Payload values must be JSON encodable.
type Event struct {
	Name    string
	Payload map[string]any
	At      time.Time
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default sink
// when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	l := p.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}
	l.Info("event", "name", ev.Name, "at", ev.At, "payload", ev.Payload)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Fanout publishes to every sink and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DefaultPublishTimeout bounds each asynchronous publish.
const DefaultPublishTimeout = 5 * time.Second

// Dispatcher runs each publish in its own goroutine. Failures are logged and
// never reach the caller.
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewDispatcher(pub Publisher, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Dispatcher{pub: pub, timeout: timeout, now: time.Now}
}

// Fire publishes name with payload in the background. The request context's
// logger is kept but its cancellation is not.
func (d *Dispatcher) Fire(ctx context.Context, name string, payload map[string]any) {
	ev := Event{Name: name, Payload: payload, At: d.now().UTC()}
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		pctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		if err := d.pub.Publish(pctx, ev); err != nil {
			slogx.FromContext(base).Warn("event publish failed", slog.String("event", ev.Name), slog.Any("err", err))
		}
	}()
}

// Close waits for in-flight publishes and closes the publisher.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return d.pub.Close()
}
