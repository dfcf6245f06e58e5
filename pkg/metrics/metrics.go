// Package metrics publishes scheduling counters and latencies to CloudWatch.
package metrics

import (
	"context"
	"meetly/pkg/logger"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
)

// Metric names.
const (
	MeetingCreated        = "MeetingCreated"
	MeetingUpdated        = "MeetingUpdated"
	MeetingDeleted        = "MeetingDeleted"
	LocationConflict      = "LocationConflict"
	AccountAllocated      = "AccountAllocated"
	CapacityExhausted     = "CapacityExhausted"
	ProviderUnconfigured  = "ProviderUnconfigured"
	RemoteFailure         = "RemoteFailure"
	LockTimeout           = "LockTimeout"
	LockWait              = "LockWaitMs"
	EventPublished        = "EventPublished"
	EventPublishFailed    = "EventPublishFailed"
	EventConsumed         = "EventConsumed"
	EventConsumeFailed    = "EventConsumeFailed"
	ProviderTokenRefresh  = "ProviderTokenRefresh"
	ProviderRequestFailed = "ProviderRequestFailed"
)

const (
	UnitCount        = cloudwatch.StandardUnitCount
	UnitMilliseconds = cloudwatch.StandardUnitMilliseconds

	maxBatch      = 20
	bufferSize    = 1024
	flushInterval = 10 * time.Second
)

// Recorder is what the rest of the code depends on.
type Recorder interface {
	Count(name string, dims map[string]string)
	Duration(name string, d time.Duration, dims map[string]string)
	Close()
}

// Noop discards every metric.
type Noop struct{}

func (Noop) Count(string, map[string]string)                  {}
func (Noop) Duration(string, time.Duration, map[string]string) {}
func (Noop) Close()                                            {}

// CloudWatch buffers datums and flushes them in batches from a single worker.
type CloudWatch struct {
	api       cloudwatchiface.CloudWatchAPI
	namespace string
	log       *logger.Logger
	datums    chan *cloudwatch.MetricDatum
	done      chan struct{}
	closeOnce sync.Once
}

// NewCloudWatch builds a recorder backed by the default AWS credential chain.
func NewCloudWatch(region, namespace string, log *logger.Logger) (*CloudWatch, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return NewCloudWatchWithAPI(cloudwatch.New(sess), namespace, log), nil
}

func NewCloudWatchWithAPI(api cloudwatchiface.CloudWatchAPI, namespace string, log *logger.Logger) *CloudWatch {
	cw := &CloudWatch{
		api:       api,
		namespace: namespace,
		log:       log,
		datums:    make(chan *cloudwatch.MetricDatum, bufferSize),
		done:      make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (c *CloudWatch) Count(name string, dims map[string]string) {
	c.enqueue(name, 1, UnitCount, dims)
}

func (c *CloudWatch) Duration(name string, d time.Duration, dims map[string]string) {
	c.enqueue(name, float64(d.Milliseconds()), UnitMilliseconds, dims)
}

// Close flushes what is buffered and stops the worker.
func (c *CloudWatch) Close() {
	c.closeOnce.Do(func() {
		close(c.datums)
		<-c.done
	})
}

func (c *CloudWatch) enqueue(name string, value float64, unit string, dims map[string]string) {
	datum := &cloudwatch.MetricDatum{
		MetricName: aws.String(name),
		Timestamp:  aws.Time(time.Now()),
		Value:      aws.Float64(value),
		Unit:       aws.String(unit),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, &cloudwatch.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	select {
	case c.datums <- datum:
	default:
		c.log.Warn("Metrics buffer full, dropping datum", "metric", name)
	}
}

func (c *CloudWatch) run() {
	defer close(c.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*cloudwatch.MetricDatum, 0, maxBatch)
	for {
		select {
		case datum, ok := <-c.datums:
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, datum)
			if len(batch) == maxBatch {
				c.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(batch)
			batch = batch[:0]
		}
	}
}

func (c *CloudWatch) flush(batch []*cloudwatch.MetricDatum) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.api.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: batch,
	})
	if err != nil {
		c.log.Error("CloudWatch metric publish failed", "count", len(batch), "error", err)
	}
}
