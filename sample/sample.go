// Package sample defines the metric sample reported by sensors.
package sample

import "math"

// Sample is one temperature/humidity reading from a device. Timestamps are
// Unix milliseconds; GeneratedAt is set by the origin, ReceivedAt by the
// collector at persistence time. Samples are immutable once persisted.
type Sample struct {
	DeviceID    string  `json:"deviceId"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	GeneratedAt int64   `json:"timestamp,omitempty"`
	ReceivedAt  int64   `json:"receivedAt,omitempty"`
}

// Round2 rounds a reading to two decimal places, the precision devices report.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
