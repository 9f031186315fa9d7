// Package journal provides a best-effort NATS JetStream audit trail of
// committed turns and schema mutations. Publish failures are logged and
// never fail a turn; the console makes no persistence guarantee.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
	"github.com/appforge-ai/console-api/pkg/metrics"
)

const (
	// StreamName is the name of the console audit stream.
	StreamName = "CONSOLE_AUDIT"

	// SubjectPrefix is the prefix for all audit subjects.
	SubjectPrefix = "console"
)

// Config holds NATS connection configuration.
type Config struct {
	URL   string
	Token string
}

// Journal publishes audit events to JetStream.
type Journal struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes the NATS connection and ensures the audit stream.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Journal, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	j := &Journal{conn: nc, js: js, logger: log}
	if err := j.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureStream(ctx context.Context) error {
	if _, err := j.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := j.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Console turn and schema-mutation audit trail",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (j *Journal) Close() {
	if j.conn != nil {
		j.conn.Close()
	}
}

// IsConnected reports NATS connection health for readiness checks.
func (j *Journal) IsConnected() bool {
	return j.conn != nil && j.conn.IsConnected()
}

// TurnSubject returns the subject for a committed turn.
func TurnSubject(author model.Author) string {
	return fmt.Sprintf("%s.turns.%s", SubjectPrefix, author)
}

// MutationSubject is the subject for schema mutations.
func MutationSubject() string {
	return fmt.Sprintf("%s.schema.mutation", SubjectPrefix)
}

// PublishTurn journals a committed turn, best effort.
func (j *Journal) PublishTurn(ctx context.Context, turn model.Turn) {
	j.publish(ctx, TurnSubject(turn.Author), turn)
}

// PublishSchemaMutation journals a committed admin payload, best effort.
func (j *Journal) PublishSchemaMutation(ctx context.Context, result *model.StructuredResult) {
	j.publish(ctx, MutationSubject(), result)
}

func (j *Journal) publish(ctx context.Context, subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		j.logger.Error("failed to marshal journal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := j.js.Publish(ctx, subject, data); err != nil {
		metrics.JournalPublishesTotal.WithLabelValues(subject, "error").Inc()
		j.logger.Warn("journal publish failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	metrics.JournalPublishesTotal.WithLabelValues(subject, "ok").Inc()
}
