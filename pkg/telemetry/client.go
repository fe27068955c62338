// Package telemetry publishes resampled timeseries output and Matryoshka
// status reports to an MQTT broker, grounded on the teacher's
// pkg/mqtt/client.go connection handling and topic layout, with the
// teacher's hand-rolled linear PublishWithRetry and RateLimiter replaced by
// pkg/retry's exponential backoff and token-bucket limiter.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/power"
	"github.com/holmgren-io/microgrid-core/pkg/retry"
	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// Config configures the MQTT telemetry publisher.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	Enabled     bool
}

// Client publishes resampled samples and power reports over MQTT.
type Client struct {
	mqtt   MQTT.Client
	cfg    Config
	logger *logx.Logger

	strategy  retry.Strategy
	limiter   *retry.Limiter
	connected atomic.Bool
}

// NewClient builds (but does not connect) an MQTT telemetry client.
func NewClient(cfg Config, strategy retry.Strategy, limiter *retry.Limiter, logger *logx.Logger) *Client {
	return &Client{cfg: cfg, strategy: strategy, limiter: limiter, logger: logger}
}

// Connect dials the broker, matching the teacher's auto-reconnect options.
func (c *Client) Connect() error {
	if !c.cfg.Enabled {
		c.logger.Debug("mqtt telemetry disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(func(MQTT.Client) { c.connected.Store(true) })
	opts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		c.connected.Store(false)
		c.logger.Warn("mqtt connection lost", "error", err.Error())
	})

	c.mqtt = MQTT.NewClient(opts)
	if token := c.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("telemetry: connect to %s: %w", c.cfg.Broker, token.Error())
	}
	c.logger.Info("mqtt telemetry connected", "broker", c.cfg.Broker)
	return nil
}

// Disconnect closes the broker connection, if any.
func (c *Client) Disconnect() {
	if c.mqtt != nil && c.connected.Load() {
		c.mqtt.Disconnect(250)
		c.connected.Store(false)
	}
}

// PublishSample publishes a single resampled output sample for source
// name under "<prefix>/samples/<name>".
func (c *Client) PublishSample(ctx context.Context, name string, sample timeseries.Sample) error {
	if !c.cfg.Enabled {
		return nil
	}
	topic := fmt.Sprintf("%s/samples/%s", c.cfg.TopicPrefix, name)
	payload := map[string]interface{}{"timestamp": sample.Timestamp}
	if v, ok := sample.BaseValue(); ok {
		payload["value"] = v
	}
	return c.publishWithRetry(ctx, topic, payload)
}

// PublishPowerReport publishes a Matryoshka status report under
// "<prefix>/power/report".
func (c *Client) PublishPowerReport(ctx context.Context, report power.Report) error {
	if !c.cfg.Enabled {
		return nil
	}
	topic := fmt.Sprintf("%s/power/report", c.cfg.TopicPrefix)
	return c.publishWithRetry(ctx, topic, report)
}

// publishWithRetry generalizes the teacher's linear PublishWithRetry into
// pkg/retry's exponential backoff, and shapes outbound publish rate with
// the same token-bucket limiter the microgrid client uses for unary calls.
func (c *Client) publishWithRetry(ctx context.Context, topic string, payload interface{}) error {
	if !c.connected.Load() {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telemetry: marshal payload for %s: %w", topic, err)
	}

	return retry.Do(ctx, c.strategy, func() error {
		token := c.mqtt.Publish(topic, c.cfg.QoS, c.cfg.Retain, data)
		token.Wait()
		return token.Error()
	})
}
