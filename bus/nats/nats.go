// Package nats publishes engine events to a NATS server, for demos where a
// separate process (activity feed, analytics sink) consumes the stream.
package nats

import "github.com/nats-io/nats.go"

type Bus struct {
	nc *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Bus{nc: nc}, nil
}

// NewBus wraps an existing connection. The caller keeps ownership.
func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

func (b *Bus) Publish(topic string, data []byte) error {
	return b.nc.Publish(topic, data)
}

// Close drains and closes the connection.
func (b *Bus) Close() {
	b.nc.Close()
}
