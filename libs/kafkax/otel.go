package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTraceHeaders appends the W3C trace context of ctx to headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	c := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, c)
	return c.headers
}

// ExtractTraceContext returns ctx carrying the trace context found in msg's headers.
func ExtractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &headerCarrier{headers: msg.Headers})
}

type headerCarrier struct {
	headers []kafka.Header
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(c.headers))
	for i, h := range c.headers {
		keys[i] = h.Key
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}
