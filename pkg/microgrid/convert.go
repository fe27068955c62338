package microgrid

import "time"

func toComponent(m map[string]interface{}) Component {
	return Component{
		ID:       toUint64(m["id"]),
		Category: Category(toUint64(m["category"])),
	}
}

func toConnection(m map[string]interface{}) Connection {
	return Connection{Start: toUint64(m["start"]), End: toUint64(m["end"])}
}

func toMeterData(m map[string]interface{}) MeterData {
	return MeterData{
		ComponentID:  toUint64(m["component_id"]),
		Timestamp:    toTime(m["timestamp"]),
		ActivePowerW: toFloat(m["active_power_w"]),
	}
}

func toBatteryData(m map[string]interface{}) BatteryData {
	bd := BatteryData{
		ComponentID: toUint64(m["component_id"]),
		Timestamp:   toTime(m["timestamp"]),
		SoCPercent:  toFloat(m["soc_percent"]),
		CapacityWh:  toFloat(m["capacity_wh"]),
		PowerW:      toFloat(m["power_w"]),
	}
	if v, ok := m["inclusion_bounds_lower_w"]; ok {
		f := toFloat(v)
		bd.InclusionBoundsLowerW = &f
	}
	if v, ok := m["inclusion_bounds_upper_w"]; ok {
		f := toFloat(v)
		bd.InclusionBoundsUpperW = &f
	}
	return bd
}

func toInverterData(m map[string]interface{}) InverterData {
	return InverterData{
		ComponentID:  toUint64(m["component_id"]),
		Timestamp:    toTime(m["timestamp"]),
		ActivePowerW: toFloat(m["active_power_w"]),
	}
}

func toEVChargerData(m map[string]interface{}) EVChargerData {
	return EVChargerData{
		ComponentID:  toUint64(m["component_id"]),
		Timestamp:    toTime(m["timestamp"]),
		ActivePowerW: toFloat(m["active_power_w"]),
	}
}

func toUint64(v interface{}) uint64 {
	f, _ := v.(float64)
	return uint64(f)
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func toTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
