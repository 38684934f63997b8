package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/baiirun/taskflow/internal/model"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "taskflow.audit"

// NATSConfig holds NATS publisher configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// NATSPublisher publishes audit events on core NATS subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials NATS. The connection retries in the background if the
// server is not yet reachable.
func Connect(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("taskflow"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", "url", cfg.URL, "subject_prefix", prefix)
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Publish sends e to "<prefix>.<action>".
func (p *NATSPublisher) Publish(ctx context.Context, e model.AuditEntry) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	subject := Subject(p.prefix, e.Action)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	if err := p.nc.FlushTimeout(flushTimeout(ctx)); err != nil {
		return fmt.Errorf("failed to flush audit event: %w", err)
	}

	p.logger.Debug("published audit event", "subject", subject, "audit_id", e.ID)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// flushTimeout honours the context deadline, if any.
func flushTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return 2 * time.Second
}

// IsConnected reports whether the connection is currently up.
func (p *NATSPublisher) IsConnected() bool {
	return p.nc != nil && p.nc.IsConnected()
}
