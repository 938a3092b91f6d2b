package timeseries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
	"github.com/spinalcom/spinal-organ-connector-azur/natsclient"
)

// Publisher is the subset of the NATS client the recorder needs
type Publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// JetStreamRecorder appends samples to a JetStream stream whose MaxAge
// enforces the retention window. Subjects are <prefix>.<endpointID>.
type JetStreamRecorder struct {
	publisher     Publisher
	subjectPrefix string
	logger        *slog.Logger
}

// Config holds the stream settings for the sample store
type Config struct {
	Stream        string
	SubjectPrefix string
	RetentionDays int
}

// NewJetStreamRecorder creates a recorder publishing through the given client
func NewJetStreamRecorder(publisher Publisher, subjectPrefix string, logger *slog.Logger) *JetStreamRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &JetStreamRecorder{
		publisher:     publisher,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

// Provision creates or updates the sample stream with its retention window
func Provision(ctx context.Context, client *natsclient.Client, cfg Config) error {
	_, err := client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return errors.Wrap(err, "JetStreamRecorder", "Provision", fmt.Sprintf("ensure stream %s", cfg.Stream))
	}
	return nil
}

// Append records one sample for the endpoint
func (r *JetStreamRecorder) Append(ctx context.Context, endpointID string, value any, at time.Time) error {
	if endpointID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "JetStreamRecorder", "Append", "empty endpoint id")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	sample := Sample{EndpointID: endpointID, Value: value, Timestamp: at}
	data, err := json.Marshal(sample)
	if err != nil {
		return errors.WrapInvalid(err, "JetStreamRecorder", "Append", "marshal sample")
	}

	subject := r.subjectPrefix + "." + endpointID
	if err := r.publisher.PublishToStream(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "JetStreamRecorder", "Append", endpointID)
	}

	r.logger.Debug("Recorded sample", "endpoint", endpointID, "value", value)
	return nil
}
