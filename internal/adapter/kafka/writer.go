package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-trends/internal/config"
	"github.com/couchcryptid/quake-trends/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// publishChunk bounds the number of messages handed to one WriteMessages call.
const publishChunk = 500

// Writer publishes precursor events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes events and writes them in chunks.
func (w *Writer) Publish(ctx context.Context, events []domain.Event) error {
	for start := 0; start < len(events); start += publishChunk {
		end := min(start+publishChunk, len(events))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(events[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write messages %d-%d: %w", start, end-1, err)
		}
		w.logger.Debug("published precursor chunk", "from", start, "to", end-1)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// eventMessage is the JSON form of an event. Unreported depth and magnitude
// are omitted since NaN has no JSON encoding.
type eventMessage struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Depth     *float64  `json:"depth,omitempty"`
	Magnitude *float64  `json:"mag,omitempty"`
	MagType   string    `json:"mag_type,omitempty"`
	Place     string    `json:"place,omitempty"`
	Type      string    `json:"type,omitempty"`
	MainEvent int       `json:"main_event"`
}

// serializeToMessage marshals an Event into a Kafka message keyed by the
// event id.
func serializeToMessage(ev domain.Event) (kafkago.Message, error) {
	data, err := json.Marshal(eventMessage{
		ID:        ev.ID,
		Time:      ev.Time,
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
		Depth:     optional(ev.Depth),
		Magnitude: optional(ev.Magnitude),
		MagType:   ev.MagType,
		Place:     ev.Place,
		Type:      ev.Type,
		MainEvent: ev.MainEvent,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event %s: %w", ev.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(ev.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "main_event", Value: []byte(strconv.Itoa(ev.MainEvent))},
			{Key: "event_time", Value: []byte(ev.Time.Format(time.RFC3339Nano))},
		},
	}, nil
}

func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
