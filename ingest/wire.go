package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/pkg/timestamp"
	"github.com/c360/envmon/sample"
)

// wireReading is the sample payload as devices put it on the wire. The
// timestamp arrives either as Unix milliseconds or as an RFC 3339 string
// depending on the sender, so it is parsed leniently.
type wireReading struct {
	DeviceID    string  `json:"deviceId"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   any     `json:"timestamp"`
}

func decodeSample(data []byte) (sample.Sample, error) {
	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return sample.Sample{}, errors.WrapInvalid(errors.ErrParsingFailed,
			"ingest", "decodeSample", fmt.Sprintf("unmarshal reading: %v", err))
	}
	if w.DeviceID == "" {
		return sample.Sample{}, errors.WrapInvalid(errors.ErrInvalidData,
			"ingest", "decodeSample", "reading has no deviceId")
	}

	smp := sample.Sample{
		DeviceID:    w.DeviceID,
		Temperature: w.Temperature,
		Humidity:    w.Humidity,
	}
	if w.Timestamp != nil {
		ts, err := timestamp.Parse(w.Timestamp)
		if err != nil {
			return sample.Sample{}, errors.WrapInvalid(errors.ErrParsingFailed,
				"ingest", "decodeSample", fmt.Sprintf("parse timestamp: %v", err))
		}
		smp.GeneratedAt = ts
	}
	return smp, nil
}
