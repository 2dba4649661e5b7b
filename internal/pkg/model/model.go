package model

import "time"

// EnergyReading is one cached 15-minute interval sample for a device.
// CurrentValue (instantaneous power in watts) is the authoritative field for
// energy math; DeltaPower is kept as reported but the vendor numbers are not
// trustworthy, so no aggregate uses it.
type EnergyReading struct {
	ID               int64     `json:"id"`
	DeviceID         string    `json:"device_id"`
	DeviceName       string    `json:"device_name"`
	Timestamp        time.Time `json:"timestamp"`
	DeltaPower       float64   `json:"delta_power"`
	AccumulatedValue float64   `json:"accumulated_value"`
	CurrentValue     float64   `json:"current_value"`
}

type EnergyReadings []EnergyReading

// ReadingSample is the write-side shape of a reading, before the store attaches
// the device it belongs to.
type ReadingSample struct {
	Timestamp        time.Time
	DeltaPower       float64
	AccumulatedValue float64
	CurrentValue     float64
}

// SpotPrice is one hourly electricity price for a bidding area. PriceSEK is
// stored in öre/kWh (the feed reports SEK/kWh, the store multiplies by 100).
type SpotPrice struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PriceArea string    `json:"price_area"`
	PriceSEK  float64   `json:"price_sek"`
	PriceEUR  *float64  `json:"price_eur,omitempty"`
}

type SpotPrices []SpotPrice

// PriceSample is the write-side shape of a price, in the feed's SEK/kWh units.
type PriceSample struct {
	Start     time.Time
	SEKPerKWh float64
	EURPerKWh *float64
}

// SyncStatus records the last successful sync per (sync_type, device). It is
// observational only; nothing derives behaviour from it.
type SyncStatus struct {
	SyncType   string     `json:"sync_type"`
	DeviceID   *string    `json:"device_id,omitempty"`
	LastSync   time.Time  `json:"last_sync"`
	OldestData *time.Time `json:"oldest_data,omitempty"`
}

// Device is a vendor device descriptor as shown on the dashboard.
type Device struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DeviceID     string  `json:"deviceId"`
	Value        int     `json:"value"`
	CurrentPower float64 `json:"currentPower"`
	BatteryOK    bool    `json:"batteryOK"`
	FuseOK       bool    `json:"fuseVoltageOK"`
	Offline      bool    `json:"offline"`
	LastUpdate   string  `json:"lastUpdate"`
	SpotArea     string  `json:"spotArea"`
	HoursActive  float64 `json:"hoursActive"`
}

// HourlyStat is one (hour, device) aggregation row. SpotPriceOre is nil when
// no price row matched the hour; CostSEK is then zero.
type HourlyStat struct {
	Hour         time.Time `json:"hour"`
	DeviceID     string    `json:"device_id"`
	DeviceName   string    `json:"device_name"`
	EnergyKWh    float64   `json:"energy_kwh"`
	ActiveRatio  float64   `json:"active_ratio"`
	SpotPriceOre *float64  `json:"spot_price_ore,omitempty"`
	CostSEK      float64   `json:"cost_sek"`
}

// DailySummary is one (day, device) row joined against the daily average
// spot price rather than hourly prices.
type DailySummary struct {
	Date          time.Time `json:"date"`
	DeviceID      string    `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	EnergyKWh     float64   `json:"energy_kwh"`
	HoursWithData int       `json:"hours_with_data"`
	AvgPriceOre   float64   `json:"avg_price_ore"`
	CostSEK       float64   `json:"cost_sek"`
}

// ActiveHours is the trailing-24h activity summary for one device.
type ActiveHours struct {
	DeviceID    string  `json:"device_id"`
	DeviceName  string  `json:"device_name"`
	ActiveHours int     `json:"active_hours"`
	EnergyKWh   float64 `json:"energy_kwh"`
}

// TableStats describes one cached table for the status endpoint.
type TableStats struct {
	Count   int64      `json:"count"`
	Oldest  *time.Time `json:"oldest,omitempty"`
	Newest  *time.Time `json:"newest,omitempty"`
	Devices int64      `json:"devices,omitempty"`
}

type Stats struct {
	EnergyReadings TableStats `json:"energy_readings"`
	SpotPrices     TableStats `json:"spot_prices"`
}
