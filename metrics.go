package noisesocket

import "sync/atomic"

// Metrics tracks per-session wire traffic. Sessions call Increment* as they
// write and read packets; collectors read back via Get*. Adapted from
// aznet's DefaultMetrics: same atomic-counter shape, renamed for
// NoiseSocket's handshake/transport vocabulary instead of driver
// transactions.
type Metrics interface {
	IncrementHandshakeMessagesSent()
	IncrementHandshakeMessagesReceived()
	IncrementTransportMessagesSent()
	IncrementTransportMessagesReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)

	GetHandshakeMessagesSent() int64
	GetHandshakeMessagesReceived() int64
	GetTransportMessagesSent() int64
	GetTransportMessagesReceived() int64
	GetBytesSent() int64
	GetBytesReceived() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	hsSent     int64
	hsRecv     int64
	xportSent  int64
	xportRecv  int64
	bytesSent  int64
	bytesRecv  int64
}

// NewDefaultMetrics creates a zero-valued DefaultMetrics.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementHandshakeMessagesSent()     { atomic.AddInt64(&m.hsSent, 1) }
func (m *DefaultMetrics) IncrementHandshakeMessagesReceived() { atomic.AddInt64(&m.hsRecv, 1) }
func (m *DefaultMetrics) IncrementTransportMessagesSent()     { atomic.AddInt64(&m.xportSent, 1) }
func (m *DefaultMetrics) IncrementTransportMessagesReceived() { atomic.AddInt64(&m.xportRecv, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)          { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64)      { atomic.AddInt64(&m.bytesRecv, n) }

func (m *DefaultMetrics) GetHandshakeMessagesSent() int64 {
	return atomic.LoadInt64(&m.hsSent)
}
func (m *DefaultMetrics) GetHandshakeMessagesReceived() int64 {
	return atomic.LoadInt64(&m.hsRecv)
}
func (m *DefaultMetrics) GetTransportMessagesSent() int64 {
	return atomic.LoadInt64(&m.xportSent)
}
func (m *DefaultMetrics) GetTransportMessagesReceived() int64 {
	return atomic.LoadInt64(&m.xportRecv)
}
func (m *DefaultMetrics) GetBytesSent() int64     { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64 { return atomic.LoadInt64(&m.bytesRecv) }
