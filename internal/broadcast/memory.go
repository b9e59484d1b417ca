package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrPublisherClosed is returned by MemoryPublisher after Close.
var ErrPublisherClosed = errors.New("broadcast: publisher closed")

// Message is one recorded publish.
type Message struct {
	Subject string
	Data    []byte
}

// MemoryPublisher records published messages in memory.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
	fail     error
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, Message{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

// FailWith makes every subsequent Publish return err. Pass nil to recover.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Messages returns a copy of everything published, in order.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Close implements Publisher.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
