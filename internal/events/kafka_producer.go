package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-marketplace/internal/models"
)

// RideEvent is the wire shape of a lifecycle event, keyed by request id so
// per-request ordering survives partitioning.
type RideEvent struct {
	Kind          string        `json:"kind"`
	RideRequestID string        `json:"rideRequestId"`
	PassengerID   string        `json:"passengerId"`
	DriverID      string        `json:"driverId,omitempty"`
	Status        models.Status `json:"status"`
	At            time.Time     `json:"at"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

// Publish emits one lifecycle event. The controller treats this as
// best-effort and ignores the error.
func (k *KafkaProducer) Publish(ctx context.Context, kind string, r *models.RideRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ev := RideEvent{
		Kind:          kind,
		RideRequestID: r.ID,
		PassengerID:   r.PassengerID,
		DriverID:      r.DriverID,
		Status:        r.Status,
		At:            time.Now(),
	}
	b, _ := json.Marshal(ev)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(r.ID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
