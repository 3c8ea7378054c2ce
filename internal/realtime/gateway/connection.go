package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
	"go.uber.org/zap"
)

// Transport is the write side of one client connection. WriteEvent is only
// ever called from the connection's writer goroutine.
type Transport interface {
	WriteEvent(ctx context.Context, ev domain.Event) error
	Close() error
}

// Connection is one open client connection. Outbound events go through a
// bounded queue drained by a single writer, so a slow client only ever
// loses its own events.
type Connection struct {
	id          string
	identity    domain.Identity
	connectedAt time.Time

	transport    Transport
	send         chan domain.Event
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	onWriteError func(c *Connection, err error)
	log          *zap.Logger
}

func (c *Connection) ID() string                { return c.id }
func (c *Connection) Identity() domain.Identity { return c.identity }
func (c *Connection) ConnectedAt() time.Time    { return c.connectedAt }

// Done is closed once the connection has been disconnected.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Send queues ev without blocking. It returns false when the connection is
// closed or its queue is full.
func (c *Connection) Send(ev domain.Event) bool {
	select {
	case <-c.done:
		metrics.EventsDropped.WithLabelValues("closed").Inc()
		return false
	default:
	}
	select {
	case c.send <- ev:
		metrics.EventsPushed.WithLabelValues(ev.Name).Inc()
		return true
	default:
		metrics.EventsDropped.WithLabelValues("queue_full").Inc()
		c.log.Warn("outbound queue full, event dropped", zap.String("event", ev.Name))
		return false
	}
}

// close marks the connection done and reports whether this call did it.
func (c *Connection) close() bool {
	closed := false
	c.closeOnce.Do(func() {
		close(c.done)
		closed = true
	})
	return closed
}

func (c *Connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writeLoop delivers queued events until the connection is closed. Events
// still queued at that point are discarded.
func (c *Connection) writeLoop() {
	defer func() {
		if err := c.transport.Close(); err != nil {
			c.log.Debug("transport close", zap.Error(err))
		}
	}()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
			err := c.transport.WriteEvent(ctx, ev)
			cancel()
			if err != nil {
				c.onWriteError(c, err)
				return
			}
		}
	}
}
