// internal/channel/conn.go
package channel

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultSendBuffer is the outbound queue length of a connection.
const DefaultSendBuffer = 64

// Conn is one client connection registered in a group. Frames are queued on Out and
// written by a single writer goroutine owned by the transport.
type Conn struct {
	SessionID uuid.UUID
	PlayerID  uuid.UUID
	Codec     Codec

	out       chan Frame
	done      chan struct{}
	closeOnce sync.Once
	evicted   atomic.Bool
	log       *logrus.Entry
}

func NewConn(sessionID, playerID uuid.UUID, codec Codec, buffer int, logger *logrus.Logger) *Conn {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Conn{
		SessionID: sessionID,
		PlayerID:  playerID,
		Codec:     codec,
		out:       make(chan Frame, buffer),
		done:      make(chan struct{}),
		log:       logger.WithFields(logrus.Fields{"gameId": sessionID, "playerId": playerID}),
	}
}

// Out is drained by the connection's writer.
func (c *Conn) Out() <-chan Frame {
	return c.out
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection closed. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Evict closes a connection that was replaced by a newer one of the same player.
func (c *Conn) Evict() {
	c.evicted.Store(true)
	c.Close()
}

// Evicted reports whether the connection was closed by Evict.
func (c *Conn) Evicted() bool {
	return c.evicted.Load()
}

// Enqueue queues f without blocking. A full or closed connection drops the frame.
func (c *Conn) Enqueue(f Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- f:
		return true
	default:
		c.log.Warn("send buffer full, dropping frame")
		return false
	}
}

// Send encodes event with the connection's codec and queues it.
func (c *Conn) Send(event any) bool {
	f, err := c.Codec.Encode(event)
	if err != nil {
		c.log.WithError(err).Error("failed to encode event")
		return false
	}
	return c.Enqueue(f)
}
