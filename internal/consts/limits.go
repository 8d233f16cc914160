package consts

import "time"

// Buffer sizes for socket framing
const (
	// BufferSize1KB is 1 kilobyte
	BufferSize1KB = 1024
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
)

// DefaultMaxMessageSize caps a single inbound socket message. The cap bounds
// the memory a fragmented or oversized message can consume before decoding.
const DefaultMaxMessageSize = BufferSize64KB

// WebSocket session timing
const (
	// WriteWait is the time allowed to write a message to the peer.
	WriteWait = 10 * time.Second
	// PongWait is the time allowed to read the next pong message from the peer.
	PongWait = 60 * time.Second
	// PingPeriod is the interval between pings. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10
)

// Timeouts for server lifecycle
const (
	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout = 5 * time.Second
)
