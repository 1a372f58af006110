package kafkax

import (
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventMeta is the metadata every message on the bus carries in its headers.
type EventMeta struct {
	EventID   string
	EventType string
}

func (m EventMeta) Headers() []kafka.Header {
	return []kafka.Header{
		{Key: HeaderEventID, Value: []byte(m.EventID)},
		{Key: HeaderEventType, Value: []byte(m.EventType)},
	}
}

// ExtractEventMeta reads EventMeta from msg, falling back to the key and topic.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// NewWriter returns a writer that routes by message key and takes the topic from each message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}
