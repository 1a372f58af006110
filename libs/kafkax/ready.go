package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck passes when any broker answers a metadata request.
func ReadyCheck(brokers []string) func(context.Context) error {
	dialer := &kafka.Dialer{Timeout: 2 * time.Second}
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		var errs []error
		for _, addr := range brokers {
			if err := probe(ctx, dialer, addr); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", addr, err))
				continue
			}
			return nil
		}
		return errors.Join(errs...)
	}
}

func probe(ctx context.Context, dialer *kafka.Dialer, addr string) error {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Brokers()
	return err
}
