package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logFlushInterval = 2 * time.Second
	logFlushTimeout  = 5 * time.Second

	// PutLogEvents accepts up to 10,000 events and 1 MiB per call; each event
	// counts 26 bytes of overhead.
	logBatchEvents   = 500
	logBatchBytes    = 1 << 20
	logEventOverhead = 26
	logMaxBuffered   = 10000
)

type logsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient ships log lines to a per-process log stream. It
// implements io.Writer so it can be tee'd into a zap core. Write only buffers;
// lines reach CloudWatch in batches from the loop started by Start.
type CloudWatchLogsClient struct {
	client        logsAPI
	logGroupName  string
	logStreamName string
	enabled       bool

	mu      sync.Mutex
	pending []types.InputLogEvent
	dropped int

	// flushMu serializes PutLogEvents calls and guards sequenceToken.
	flushMu       sync.Mutex
	sequenceToken *string

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewCloudWatchLogsClient creates the log group and stream when CLOUDWATCH_ENABLED=true.
func NewCloudWatchLogsClient(ctx context.Context, cfg sdkaws.Config, serviceName string) (*CloudWatchLogsClient, error) {
	logGroupName := os.Getenv("CLOUDWATCH_LOG_GROUP")
	if logGroupName == "" {
		logGroupName = "/checkout/services"
	}

	c := newCloudWatchLogsClient(cloudwatchlogs.NewFromConfig(cfg), logGroupName,
		fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()), os.Getenv("CLOUDWATCH_ENABLED") == "true")
	if !c.enabled {
		return c, nil
	}

	if err := c.ensureLogGroup(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure log group: %w", err)
	}
	if _, err := c.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  sdkaws.String(c.logGroupName),
		LogStreamName: sdkaws.String(c.logStreamName),
	}); err != nil {
		return nil, fmt.Errorf("failed to create log stream: %w", err)
	}
	return c, nil
}

func newCloudWatchLogsClient(api logsAPI, group, stream string, enabled bool) *CloudWatchLogsClient {
	return &CloudWatchLogsClient{
		client:        api,
		logGroupName:  group,
		logStreamName: stream,
		enabled:       enabled,
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (c *CloudWatchLogsClient) ensureLogGroup(ctx context.Context) error {
	_, err := c.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: sdkaws.String(c.logGroupName),
	})
	if err != nil {
		var existsErr *types.ResourceAlreadyExistsException
		if !errors.As(err, &existsErr) {
			return err
		}
	}

	_, err = c.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    sdkaws.String(c.logGroupName),
		RetentionInDays: sdkaws.Int32(30),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}
	return nil
}

// Write implements io.Writer. It never blocks on the network; when the buffer
// is full the oldest lines are dropped.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	if !c.enabled {
		return len(p), nil
	}
	event := types.InputLogEvent{
		Message:   sdkaws.String(string(p)),
		Timestamp: sdkaws.Int64(time.Now().UnixMilli()),
	}

	c.mu.Lock()
	if len(c.pending) >= logMaxBuffered {
		c.pending = c.pending[1:]
		c.dropped++
	}
	c.pending = append(c.pending, event)
	full := len(c.pending) >= logBatchEvents
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Start launches the background flush loop. It is a no-op when disabled.
func (c *CloudWatchLogsClient) Start() {
	if !c.enabled {
		return
	}
	c.startOnce.Do(func() {
		go c.run()
	})
}

func (c *CloudWatchLogsClient) run() {
	defer close(c.done)
	ticker := time.NewTicker(logFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		case <-c.kick:
		}
		c.flushWithTimeout()
	}
}

func (c *CloudWatchLogsClient) flushWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), logFlushTimeout)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "CloudWatch write error: %v\n", err)
	}
}

// Close stops the flush loop and ships whatever is still buffered.
func (c *CloudWatchLogsClient) Close() error {
	if !c.enabled {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		started := true
		c.startOnce.Do(func() { started = false })
		if started {
			<-c.done
		}
		ctx, cancel := context.WithTimeout(context.Background(), logFlushTimeout)
		defer cancel()
		err = c.Flush(ctx)
	})
	return err
}

// Flush sends every buffered line. Lines of a failed batch are dropped and
// reported in the returned error.
func (c *CloudWatchLogsClient) Flush(ctx context.Context) error {
	c.mu.Lock()
	events := c.pending
	dropped := c.dropped
	c.pending = nil
	c.dropped = 0
	c.mu.Unlock()

	if dropped > 0 {
		fmt.Fprintf(os.Stderr, "CloudWatch buffer full, dropped %d log lines\n", dropped)
	}
	if len(events) == 0 {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	var errs []error
	for _, batch := range splitLogBatches(events) {
		out, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  sdkaws.String(c.logGroupName),
			LogStreamName: sdkaws.String(c.logStreamName),
			LogEvents:     batch,
			SequenceToken: c.sequenceToken,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("put %d log events: %w", len(batch), err))
			continue
		}
		c.sequenceToken = out.NextSequenceToken
	}
	return errors.Join(errs...)
}

func splitLogBatches(events []types.InputLogEvent) [][]types.InputLogEvent {
	var batches [][]types.InputLogEvent
	start, size := 0, 0
	for i, e := range events {
		n := len(sdkaws.ToString(e.Message)) + logEventOverhead
		if i > start && (i-start >= logBatchEvents || size+n > logBatchBytes) {
			batches = append(batches, events[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(batches, events[start:])
}

// IsEnabled returns whether CloudWatch logging is enabled
func (c *CloudWatchLogsClient) IsEnabled() bool {
	return c.enabled
}
