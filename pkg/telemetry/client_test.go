package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/retry"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

func newDisabledClient() *Client {
	return NewClient(
		Config{Enabled: false, TopicPrefix: "gridcore"},
		retry.DefaultStrategy(),
		retry.NewLimiter(1000, 1000),
		logx.NewLogger("info", "telemetry-test"),
	)
}

func TestPublishSampleNoOpWhenDisabled(t *testing.T) {
	c := newDisabledClient()
	err := c.PublishSample(context.Background(), "meter-1", timeseries.NewSample(time.Now(), 12.5))
	if err != nil {
		t.Fatalf("expected no-op success when disabled, got: %v", err)
	}
}

func TestPublishWithRetryNoOpWhenNotConnected(t *testing.T) {
	c := NewClient(
		Config{Enabled: true, TopicPrefix: "gridcore"},
		retry.DefaultStrategy(),
		retry.NewLimiter(1000, 1000),
		logx.NewLogger("info", "telemetry-test"),
	)
	// Enabled but never Connect()-ed: connected stays false.
	err := c.publishWithRetry(context.Background(), "gridcore/samples/x", map[string]interface{}{"value": 1.0})
	if err != nil {
		t.Fatalf("expected no-op when not connected, got: %v", err)
	}
}

func TestDisconnectIsSafeWithoutConnect(t *testing.T) {
	c := newDisabledClient()
	c.Disconnect() // must not panic on a nil underlying mqtt.Client
}
