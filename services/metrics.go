package services

import (
	"context"
	"time"
)

// MetricsRecorder is satisfied by *aws.MetricsClient; a nil client records nothing.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

const serviceName = "checkout-service"

func serviceDims() map[string]string {
	return map[string]string{"Service": serviceName}
}

// RecordCountAsync emits a counter without blocking the caller.
func RecordCountAsync(m MetricsRecorder, metricName string) {
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.RecordCount(ctx, metricName, serviceDims())
	}()
}
