package tempiro

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTime_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var lt LocalTime
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T14:30:00"`), &lt))
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), lt.Time)

	// Fractional seconds appear on some endpoints and are dropped.
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T14:30:00.1234567"`), &lt))
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), lt.Time)

	lt = LocalTime{}
	require.NoError(t, json.Unmarshal([]byte(`null`), &lt))
	assert.True(t, lt.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &lt))
}

func TestLocalTime_MarshalRoundTrip(t *testing.T) {
	t.Parallel()
	lt := LocalTime{Time: time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)}

	data, err := json.Marshal(lt)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01T14:30:00"`, string(data))
}

func TestIntervalValueSample(t *testing.T) {
	t.Parallel()
	v := IntervalValue{
		DateTime:         LocalTime{Time: time.Date(2026, 3, 1, 0, 15, 0, 0, time.UTC)},
		DeltaPower:       12.5,
		AccumulatedValue: 123.9,
		CurrentValue:     1500,
	}

	s := v.Sample()
	assert.Equal(t, v.DateTime.Time, s.Timestamp)
	assert.Equal(t, 12.5, s.DeltaPower)
	assert.Equal(t, 123.9, s.AccumulatedValue)
	assert.Equal(t, 1500.0, s.CurrentValue)
}
