package microgrid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/retry"
)

const (
	methodListComponents  = "/microgrid.v1.MicrogridApi/ListComponents"
	methodListConnections = "/microgrid.v1.MicrogridApi/ListConnections"
	methodStreamMeter     = "/microgrid.v1.MicrogridApi/StreamMeterData"
	methodStreamBattery   = "/microgrid.v1.MicrogridApi/StreamBatteryData"
	methodStreamInverter  = "/microgrid.v1.MicrogridApi/StreamInverterData"
	methodStreamEVCharger = "/microgrid.v1.MicrogridApi/StreamEVChargerData"
	methodSetPower        = "/microgrid.v1.MicrogridApi/SetPower"
	methodSetBounds       = "/microgrid.v1.MicrogridApi/SetBounds"
)

// Client is a gRPC-backed implementation of the external RPC client
// collaborator surface, dialed against a single microgrid API endpoint.
type Client struct {
	target string
	conn   *grpc.ClientConn
	logger *logx.Logger

	limiter       *retry.Limiter
	retryStrategy retry.Strategy

	mu         sync.Mutex
	components map[uint64]Component
	broadcasts map[string]map[uint64]*broadcast
}

// NewClient dials the microgrid API at target (host:port), following the
// teacher's Starlink client dial pattern: insecure transport credentials
// and a context-bound dial timeout.
func NewClient(ctx context.Context, target string, dialTimeout time.Duration, logger *logx.Logger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("microgrid: connect to %s: %w", target, err)
	}

	return &Client{
		target:        target,
		conn:          conn,
		logger:        logger,
		limiter:       retry.NewLimiter(20, 5),
		retryStrategy: retry.DefaultStrategy(),
		components:    make(map[uint64]Component),
		broadcasts:    make(map[string]map[uint64]*broadcast),
	}, nil
}

// Close tears down the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Components lists every known component, filtering out sensor-category
// entries.
func (c *Client) Components(ctx context.Context) ([]Component, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := invokeUnary(ctx, c.conn, methodListComponents, nil)
	if err != nil {
		return nil, fmt.Errorf("microgrid: list components at %s: %w", c.target, err)
	}

	raw, _ := resp["components"].([]interface{})
	out := make([]Component, 0, len(raw))

	c.mu.Lock()
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		comp := toComponent(m)
		c.components[comp.ID] = comp
		if comp.Category == CategorySensor {
			continue
		}
		out = append(out, comp)
	}
	c.mu.Unlock()

	return out, nil
}

// Connections lists connections, optionally filtered by start/end IDs.
// Only connections whose endpoints are both known components are returned;
// Components() must have been called at least once to populate the cache.
// Component ID 0 is always treated as the implicit grid connection point.
func (c *Client) Connections(ctx context.Context, starts, ends []uint64) ([]Connection, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := map[string]interface{}{}
	if len(starts) > 0 {
		req["starts"] = toInterfaceSlice(starts)
	}
	if len(ends) > 0 {
		req["ends"] = toInterfaceSlice(ends)
	}

	resp, err := invokeUnary(ctx, c.conn, methodListConnections, req)
	if err != nil {
		return nil, fmt.Errorf("microgrid: list connections at %s: %w", c.target, err)
	}

	raw, _ := resp["connections"].([]interface{})
	out := make([]Connection, 0, len(raw))
	c.mu.Lock()
	known := func(id uint64) bool {
		_, ok := c.components[id]
		return ok || id == 0
	}
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		conn := toConnection(m)
		if !known(conn.Start) || !known(conn.End) {
			continue
		}
		out = append(out, conn)
	}
	c.mu.Unlock()
	return out, nil
}

func toInterfaceSlice(ids []uint64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = float64(id)
	}
	return out
}

// knownCategory validates componentID is registered and of the expected
// category, per the InvalidComponent contract. Components() must have been
// called at least once to populate the cache.
func (c *Client) knownCategory(componentID uint64, want Category) error {
	c.mu.Lock()
	comp, ok := c.components[componentID]
	c.mu.Unlock()

	if !ok {
		return &InvalidComponent{ComponentID: componentID, Reason: "unknown component"}
	}
	if comp.Category != want {
		return &InvalidComponent{ComponentID: componentID, Reason: "unexpected component category"}
	}
	return nil
}

// streamBroadcast returns (creating if necessary) the shared broadcast for
// (kind, componentID), establishing the streaming RPC only on first use.
func (c *Client) streamBroadcast(ctx context.Context, kind, fullMethod string, componentID uint64) (*broadcast, error) {
	c.mu.Lock()
	byComponent, ok := c.broadcasts[kind]
	if !ok {
		byComponent = make(map[uint64]*broadcast)
		c.broadcasts[kind] = byComponent
	}
	b, ok := byComponent[componentID]
	c.mu.Unlock()
	if ok {
		return b, nil
	}

	b, err := newBroadcast(ctx, c.conn, fmt.Sprintf("%s/%d", kind, componentID), fullMethod,
		map[string]interface{}{"component_id": float64(componentID)}, c.logger)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	byComponent[componentID] = b
	c.mu.Unlock()
	return b, nil
}

// MeterData returns a broadcast stream of meter readings for componentID.
func (c *Client) MeterData(ctx context.Context, componentID uint64, maxsize int) (<-chan MeterData, error) {
	if err := c.knownCategory(componentID, CategoryMeter); err != nil {
		return nil, err
	}
	b, err := c.streamBroadcast(ctx, "meter", methodStreamMeter, componentID)
	if err != nil {
		return nil, err
	}
	return mapChan(b.subscribe(maxsize), toMeterData), nil
}

// BatteryData returns a broadcast stream of battery readings for componentID.
func (c *Client) BatteryData(ctx context.Context, componentID uint64, maxsize int) (<-chan BatteryData, error) {
	if err := c.knownCategory(componentID, CategoryBattery); err != nil {
		return nil, err
	}
	b, err := c.streamBroadcast(ctx, "battery", methodStreamBattery, componentID)
	if err != nil {
		return nil, err
	}
	return mapChan(b.subscribe(maxsize), toBatteryData), nil
}

// InverterData returns a broadcast stream of inverter readings for componentID.
func (c *Client) InverterData(ctx context.Context, componentID uint64, maxsize int) (<-chan InverterData, error) {
	if err := c.knownCategory(componentID, CategoryInverter); err != nil {
		return nil, err
	}
	b, err := c.streamBroadcast(ctx, "inverter", methodStreamInverter, componentID)
	if err != nil {
		return nil, err
	}
	return mapChan(b.subscribe(maxsize), toInverterData), nil
}

// EVChargerData returns a broadcast stream of EV charger readings for componentID.
func (c *Client) EVChargerData(ctx context.Context, componentID uint64, maxsize int) (<-chan EVChargerData, error) {
	if err := c.knownCategory(componentID, CategoryEVCharger); err != nil {
		return nil, err
	}
	b, err := c.streamBroadcast(ctx, "ev_charger", methodStreamEVCharger, componentID)
	if err != nil {
		return nil, err
	}
	return mapChan(b.subscribe(maxsize), toEVChargerData), nil
}

func mapChan[T any](in <-chan map[string]interface{}, fn func(map[string]interface{}) T) <-chan T {
	out := make(chan T, cap(in))
	go func() {
		defer close(out)
		for m := range in {
			out <- fn(m)
		}
	}()
	return out
}

// SetPower commands componentID to watts. Unary RPC errors propagate
// immediately, wrapped with the target address.
func (c *Client) SetPower(ctx context.Context, componentID uint64, watts float64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := invokeUnary(ctx, c.conn, methodSetPower, map[string]interface{}{
		"component_id": float64(componentID),
		"power_w":      watts,
	})
	if err != nil {
		return fmt.Errorf("microgrid: set_power(%d, %v) at %s: %w", componentID, watts, c.target, err)
	}
	return nil
}

// SetBounds commands componentID's power bounds. lower <= 0 <= upper is
// enforced at the client before the RPC is made.
func (c *Client) SetBounds(ctx context.Context, componentID uint64, lower, upper float64) error {
	if lower > 0 || upper < 0 {
		return fmt.Errorf("microgrid: set_bounds(%d): bounds must satisfy lower <= 0 <= upper, got [%v, %v]", componentID, lower, upper)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := invokeUnary(ctx, c.conn, methodSetBounds, map[string]interface{}{
		"component_id": float64(componentID),
		"lower_w":      lower,
		"upper_w":      upper,
	})
	if err != nil {
		return fmt.Errorf("microgrid: set_bounds(%d, %v, %v) at %s: %w", componentID, lower, upper, c.target, err)
	}
	return nil
}
