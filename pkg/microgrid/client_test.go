package microgrid

import (
	"context"
	"errors"
	"testing"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/retry"
)

func newTestClient() *Client {
	return &Client{
		target:        "test",
		logger:        logx.NewLogger("info", "microgrid-test"),
		limiter:       retry.NewLimiter(1000, 1000),
		retryStrategy: retry.DefaultStrategy(),
		components:    make(map[uint64]Component),
		broadcasts:    make(map[string]map[uint64]*broadcast),
	}
}

func TestKnownCategoryRejectsUnknownComponent(t *testing.T) {
	c := newTestClient()

	err := c.knownCategory(7, CategoryBattery)
	var invalid *InvalidComponent
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidComponent, got %v", err)
	}
	if invalid.Reason != "unknown component" {
		t.Fatalf("unexpected reason: %s", invalid.Reason)
	}
}

func TestKnownCategoryRejectsCategoryMismatch(t *testing.T) {
	c := newTestClient()
	c.components[7] = Component{ID: 7, Category: CategoryMeter}

	err := c.knownCategory(7, CategoryBattery)
	var invalid *InvalidComponent
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidComponent, got %v", err)
	}
	if invalid.Reason != "unexpected component category" {
		t.Fatalf("unexpected reason: %s", invalid.Reason)
	}
}

func TestKnownCategoryAcceptsMatchingComponent(t *testing.T) {
	c := newTestClient()
	c.components[7] = Component{ID: 7, Category: CategoryBattery}

	if err := c.knownCategory(7, CategoryBattery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetBoundsRejectsBoundsNotStraddlingZero(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	cases := []struct {
		lower, upper float64
	}{
		{lower: 5, upper: 10},
		{lower: -10, upper: -5},
	}
	for _, tc := range cases {
		if err := c.SetBounds(ctx, 1, tc.lower, tc.upper); err == nil {
			t.Fatalf("expected rejection for bounds [%v, %v]", tc.lower, tc.upper)
		}
	}
}

func TestToInterfaceSlice(t *testing.T) {
	out := toInterfaceSlice([]uint64{1, 2, 3})
	if len(out) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(out))
	}
	if out[1].(float64) != 2 {
		t.Fatalf("expected element 1 to be 2, got %v", out[1])
	}
}

func TestMapChanAppliesConversion(t *testing.T) {
	in := make(chan map[string]interface{}, 2)
	in <- map[string]interface{}{"component_id": float64(3), "active_power_w": 42.0}
	close(in)

	out := mapChan(in, toMeterData)
	reading, ok := <-out
	if !ok {
		t.Fatal("expected a reading")
	}
	if reading.ComponentID != 3 || reading.ActivePowerW != 42.0 {
		t.Fatalf("unexpected reading: %+v", reading)
	}
	if _, ok := <-out; ok {
		t.Fatal("expected channel to close after source closes")
	}
}
