// Package bus carries committed-transaction events to interested parties
// (live activity feeds, analytics). Publishing is fire-and-forget; the
// write path never blocks on a subscriber.
package bus

import "sync"

// Publisher is the minimal event sink the engine publishes to.
type Publisher interface {
	Publish(topic string, data []byte) error
}

// =============================================================================
// IN-PROCESS BUS
// =============================================================================

// Memory is an in-process Publisher with topic subscriptions. Useful for
// single-process demos and tests.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan []byte)}
}

// Subscribe returns a channel receiving every payload published to topic.
// Slow consumers drop messages rather than stalling publishers.
func (m *Memory) Subscribe(topic string, buffer int) <-chan []byte {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan []byte, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = append(m.subs[topic], ch)
	return ch
}

func (m *Memory) Publish(topic string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[topic] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}
