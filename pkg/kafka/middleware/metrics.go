package kafka_middleware

import (
	"context"
	"time"

	"meetly/pkg/kafka"
	"meetly/pkg/metrics"
)

// MetricsProducerMiddleware records publish outcomes and latency.
func MetricsProducerMiddleware(rec metrics.Recorder) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		dims := map[string]string{"Topic": msg.Topic, "EventType": msg.GetEventType()}
		if err != nil {
			rec.Count(metrics.EventPublishFailed, dims)
		} else {
			rec.Count(metrics.EventPublished, dims)
		}
		rec.Duration(metrics.EventPublished+"Ms", time.Since(start), dims)

		return err
	}
}

// MetricsConsumerMiddleware records consume outcomes and latency.
func MetricsConsumerMiddleware(rec metrics.Recorder) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		dims := map[string]string{"Topic": msg.Topic}
		if err != nil {
			rec.Count(metrics.EventConsumeFailed, dims)
		} else {
			rec.Count(metrics.EventConsumed, dims)
		}
		rec.Duration(metrics.EventConsumed+"Ms", time.Since(start), dims)

		return err
	}
}
