package authcore

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
)

// AuditEvent is one security-relevant engine event. It never carries
// passwords, token strings or key material.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
// Implementations must not block for long; a slow sink fills the buffer.
type AuditSink = audit.Sink

type (
	NoOpAuditSink    = audit.NoOpSink
	ChannelAuditSink = audit.ChannelSink
	JSONWriterSink   = audit.JSONWriterSink
	LoggerAuditSink  = audit.LoggerSink
)

// Audit event types.
const (
	AuditLoginSuccess   = flows.EventLoginSuccess
	AuditLoginFailure   = flows.EventLoginFailure
	AuditLoginLocked    = flows.EventLoginLocked
	AuditAccountLocked  = flows.EventAccountLocked
	AuditAccountUnlock  = flows.EventAccountUnlock
	AuditRefreshSuccess = flows.EventRefreshSuccess
	AuditRefreshFailure = flows.EventRefreshFailure
	AuditLogout         = flows.EventLogout
	AuditTokenRevoked   = flows.EventTokenRevoked
)

// NewChannelAuditSink returns a sink that forwards events to a buffered
// channel, mostly useful in tests.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLoggerAuditSink logs each event through logger.
func NewLoggerAuditSink(logger zerolog.Logger) *LoggerAuditSink {
	return audit.NewLoggerSink(logger)
}
