package tempiro

import (
	"fmt"
	"strings"
	"time"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

// The API speaks local-naive ISO-8601 without an offset.
const timeLayout = "2006-01-02T15:04:05"

// LocalTime unmarshals the vendor's zone-less timestamps. The wall clock is
// tagged UTC to match the store's local-naive convention (model.Naive).
type LocalTime struct {
	time.Time
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{timeLayout, "2006-01-02T15:04:05.999999999"} {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.Truncate(time.Second)
			return nil
		}
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = model.Naive(parsed)
		return nil
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(timeLayout) + `"`), nil
}

type deviceResponse struct {
	ID            string  `json:"Id"`
	Name          string  `json:"Name"`
	DeviceID      string  `json:"DeviceId"`
	Value         int     `json:"Value"`
	CurrentPower  float64 `json:"CurrentPower"`
	BatteryOK     bool    `json:"BatteryOK"`
	FuseVoltageOK bool    `json:"FuseVoltageOK"`
	OfflineFlag   bool    `json:"OfflineFlag"`
	LastUpdate    string  `json:"LastUpdate"`
	SpotArea      string  `json:"spotArea"`
	HoursActive   float64 `json:"hoursActive"`
}

func (d deviceResponse) toDevice() model.Device {
	return model.Device{
		ID:           d.ID,
		Name:         d.Name,
		DeviceID:     d.DeviceID,
		Value:        d.Value,
		CurrentPower: d.CurrentPower,
		BatteryOK:    d.BatteryOK,
		FuseOK:       d.FuseVoltageOK,
		Offline:      d.OfflineFlag,
		LastUpdate:   d.LastUpdate,
		SpotArea:     d.SpotArea,
		HoursActive:  d.HoursActive,
	}
}

// IntervalValue is one raw sample from the interval endpoint. Note the first
// element of any interval query carries the accumulated total instead of a
// true interval sample; callers discard it before persisting.
type IntervalValue struct {
	DateTime         LocalTime `json:"DateTime"`
	DeltaPower       float64   `json:"DeltaPower"`
	AccumulatedValue float64   `json:"AccumulatedValue"`
	CurrentValue     float64   `json:"CurrentValue"`
}

// Sample converts a wire value into the store's write shape.
func (v IntervalValue) Sample() model.ReadingSample {
	return model.ReadingSample{
		Timestamp:        v.DateTime.Time,
		DeltaPower:       v.DeltaPower,
		AccumulatedValue: v.AccumulatedValue,
		CurrentValue:     v.CurrentValue,
	}
}

type switchRequest struct {
	Value int    `json:"Value"`
	ID    string `json:"Id"`
}
