package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metric and dimension names emitted by the API chassis.
const (
	metricAPILatency      = "APILatency"
	metricAPIRequestCount = "APIRequestCount"

	dimMethod   = "Method"
	dimEndpoint = "Endpoint"
	dimStatus   = "Status"
)

// metricsPublishTimeout bounds each PutMetricData call so a slow CloudWatch
// endpoint never delays request handling.
const metricsPublishTimeout = 2 * time.Second

// Compile-time assertion that CloudWatchMetrics implements MetricsCollector.
var _ MetricsCollector = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics implements MetricsCollector by emitting request latency
// and count metrics to AWS CloudWatch. Publishing happens asynchronously;
// failures are logged and never surfaced to the caller.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics that publishes to the
// specified CloudWatch namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRequest emits APILatency (milliseconds) and APIRequestCount metrics
// with Method, Endpoint, and Status dimensions.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(dimMethod), Value: aws.String(method)},
		{Name: aws.String(dimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(dimStatus), Value: aws.String(status)},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(metricAPIRequestCount),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}

	// Publish off the request path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsPublishTimeout)
		defer cancel()

		if _, err := m.client.PutMetricData(ctx, input); err != nil {
			m.logger.Error("failed to record request metrics",
				"error", err.Error(),
				"method", method,
				"endpoint", endpoint,
				"status", status,
			)
		}
	}()
}
