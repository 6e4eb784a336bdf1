// Package telemetry publishes request and at-bat metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"atbat/internal/prediction"
	"atbat/internal/session"
)

// Metric and dimension names.
const (
	MetricRequestCount   = "RequestCount"
	MetricRequestLatency = "RequestLatency"
	MetricSwing          = "Swing"
	MetricConfidence     = "PredictionConfidence"

	DimMethod  = "Method"
	DimRoute   = "Route"
	DimStatus  = "StatusClass"
	DimOutcome = "Outcome"
)

// maxBatch is the number of datums sent per PutMetricData call.
const maxBatch = 500

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics buffers datums in memory and ships them in batches, so
// recording never waits on the network. Call Run to flush periodically and
// Flush on shutdown.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewCloudWatchMetrics creates a collector publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

func (m *CloudWatchMetrics) add(d ...cwtypes.MetricDatum) {
	ts := m.now()
	for i := range d {
		d[i].Timestamp = aws.Time(ts)
	}
	m.mu.Lock()
	m.pending = append(m.pending, d...)
	m.mu.Unlock()
}

// RecordRequest records one HTTP request. route should be the route
// pattern, not the raw path, to keep dimension cardinality bounded.
func (m *CloudWatchMetrics) RecordRequest(method, route string, status int, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimMethod), Value: aws.String(method)},
		{Name: aws.String(DimRoute), Value: aws.String(route)},
		{Name: aws.String(DimStatus), Value: aws.String(statusClass(status))},
	}
	m.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRequestLatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims[:2],
		},
	)
}

// RecordResolution implements session.ResolutionSink.
func (m *CloudWatchMetrics) RecordResolution(_ context.Context, s *session.Session, result prediction.Result) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimOutcome), Value: aws.String(string(s.Outcome))},
	}
	m.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricSwing),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricConfidence),
			Value:      aws.Float64(result.Confidence),
			Unit:       cwtypes.StandardUnitNone,
			Dimensions: dims,
		},
	)
}

// Flush sends every buffered datum. Failed batches are logged and dropped.
func (m *CloudWatchMetrics) Flush(ctx context.Context) {
	m.mu.Lock()
	data := m.pending
	m.pending = nil
	m.mu.Unlock()

	for len(data) > 0 {
		n := min(len(data), maxBatch)
		batch := data[:n]
		data = data[n:]

		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: batch,
		})
		if err != nil {
			m.logger.Error("failed to publish metrics",
				"error", err.Error(),
				"datums", len(batch),
			)
		}
	}
}

// Run flushes every interval until ctx is done, then flushes once more
// using a short detached context.
func (m *CloudWatchMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			m.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			m.Flush(ctx)
		}
	}
}

// Pending returns the number of buffered datums.
func (m *CloudWatchMetrics) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
