package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-point-etl/internal/config"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes result rows to a Kafka topic.
// It implements pipeline.TableLoader.
type Writer struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// RowMessage is the JSON value of one published row.
type RowMessage struct {
	Date        domain.Date                   `json:"date"`
	Model       domain.ModelID                `json:"model"`
	Scenario    domain.ScenarioID             `json:"scenario"`
	Lat         float64                       `json:"lat"`
	Lon         float64                       `json:"lon"`
	Values      map[domain.VariableID]float64 `json:"values"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// LoadTable publishes every row of table in a single WriteMessages call.
// Rows are keyed by date, model and scenario so a row's updates land on one
// partition.
func (w *Writer) LoadTable(ctx context.Context, sel domain.NormalizedSelection, table *domain.ResultTable) error {
	if table == nil || table.Empty() {
		return nil
	}
	msgs := make([]kafkago.Message, len(table.Rows))
	for i, row := range table.Rows {
		msg, err := serializeToMessage(sel.Point, row, table.GeneratedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rows: %w", len(msgs), err)
	}
	w.metrics.RowsPublished.Add(float64(len(msgs)))
	w.logger.Info("rows published", "rows", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey is the partition key of a row.
func MessageKey(row domain.NormalizedRow) string {
	return fmt.Sprintf("%s|%s|%s", row.Date, row.Model, row.Scenario)
}

// serializeToMessage marshals one row into a Kafka message.
func serializeToMessage(point domain.Point, row domain.NormalizedRow, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(RowMessage{
		Date:        row.Date,
		Model:       row.Model,
		Scenario:    row.Scenario,
		Lat:         point.Lat,
		Lon:         point.Lon,
		Values:      row.Values,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row %s: %w", MessageKey(row), err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(row)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "model", Value: []byte(row.Model)},
			{Key: "scenario", Value: []byte(row.Scenario)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
