package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input any) int64 {
	t.Helper()
	ms, err := Parse(input)
	require.NoError(t, err)
	return ms
}

func TestParse_Formats(t *testing.T) {
	ref := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	want := ref.UnixMilli()

	assert.Equal(t, want, mustParse(t, "2023-01-01T12:00:00Z"))
	assert.Equal(t, want, mustParse(t, "2023-01-01T12:00:00"))
	assert.Equal(t, want, mustParse(t, want))
	assert.Equal(t, want, mustParse(t, ref))
	assert.Equal(t, want, mustParse(t, ref.Unix())) // seconds promoted to ms
}

func TestParse_UnsetInputs(t *testing.T) {
	assert.Equal(t, int64(0), mustParse(t, nil))
	assert.Equal(t, int64(0), mustParse(t, ""))
	assert.Equal(t, int64(0), mustParse(t, int64(0)))
}

func TestParse_MalformedInputsError(t *testing.T) {
	_, err := Parse("not a time")
	assert.Error(t, err)

	_, err = Parse(struct{}{})
	assert.Error(t, err)
}

func TestFormat_RoundTrip(t *testing.T) {
	ms := mustParse(t, "2024-06-15T08:30:00Z")
	assert.Equal(t, "2024-06-15T08:30:00Z", Format(ms))
	assert.Equal(t, "", Format(0))
}

func TestBetween(t *testing.T) {
	start := int64(1_700_000_000_000)
	end := start + 250
	assert.Equal(t, 250*time.Millisecond, Between(start, end))
	assert.Equal(t, time.Duration(0), Between(0, end))
}

func TestSub(t *testing.T) {
	ms := int64(1_700_000_000_000)
	assert.Equal(t, ms-3_600_000, Sub(ms, time.Hour))
	assert.Equal(t, int64(0), Sub(0, time.Hour))
}

func TestZeroSemantics(t *testing.T) {
	assert.True(t, IsZero(0))
	assert.False(t, IsZero(Now()))
	assert.True(t, ToTime(0).IsZero())
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
}
