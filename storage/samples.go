package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/sample"
)

// locationColumns whitelists the device columns samples can be grouped by.
// Queries interpolate the column name, so only these values are accepted.
var locationColumns = map[string]bool{
	"room":       true,
	"department": true,
	"floor":      true,
	"building":   true,
}

// InsertSample persists an accepted sample.
func (s *Store) InsertSample(ctx context.Context, smp sample.Sample) error {
	query := s.rebind(`INSERT INTO samples (id, device_id, temperature, humidity, generated_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), smp.DeviceID, smp.Temperature, smp.Humidity,
		smp.GeneratedAt, smp.ReceivedAt)
	if err != nil {
		return errors.WrapTransient(err, "Store", "InsertSample", "insert sample")
	}
	return nil
}

// RawSamples returns a device's samples inside the half-open window
// [from, to), oldest first. Timestamps are Unix milliseconds.
func (s *Store) RawSamples(ctx context.Context, deviceID string, from, to int64) ([]sample.Sample, error) {
	query := s.rebind(`SELECT device_id, temperature, humidity, generated_at, received_at
		FROM samples
		WHERE device_id = ? AND generated_at >= ? AND generated_at < ?
		ORDER BY generated_at`)
	rows, err := s.db.QueryContext(ctx, query, deviceID, from, to)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "RawSamples", "query samples")
	}
	defer rows.Close()

	samples := []sample.Sample{}
	for rows.Next() {
		var smp sample.Sample
		if err := rows.Scan(&smp.DeviceID, &smp.Temperature, &smp.Humidity,
			&smp.GeneratedAt, &smp.ReceivedAt); err != nil {
			return nil, errors.WrapTransient(err, "Store", "RawSamples", "scan sample")
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "RawSamples", "iterate samples")
	}
	return samples, nil
}

// AggregateRow holds one pass of summary statistics over a set of samples.
// Count of zero means no samples matched; the other fields are meaningless then.
type AggregateRow struct {
	Count          int64
	AvgTemperature float64
	MinTemperature float64
	MaxTemperature float64
	AvgHumidity    float64
	MinHumidity    float64
	MaxHumidity    float64
}

// AggregateByLocation computes count/avg/min/max of temperature and humidity
// for samples whose device matches the given location column value, within
// the half-open window [from, to) on the generation timestamp. A single
// query does the whole pass.
func (s *Store) AggregateByLocation(ctx context.Context, column, value string, from, to int64) (AggregateRow, error) {
	if !locationColumns[column] {
		return AggregateRow{}, errors.WrapInvalid(
			fmt.Errorf("unknown location column %q", column),
			"Store", "AggregateByLocation", "validate column")
	}

	query := s.rebind(fmt.Sprintf(`SELECT COUNT(*),
			AVG(s.temperature), MIN(s.temperature), MAX(s.temperature),
			AVG(s.humidity), MIN(s.humidity), MAX(s.humidity)
		FROM samples s
		JOIN devices d ON d.id = s.device_id
		WHERE d.%s = ? AND s.generated_at >= ? AND s.generated_at < ?`, column))

	var row AggregateRow
	var avgT, minT, maxT, avgH, minH, maxH sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query, value, from, to).Scan(
		&row.Count, &avgT, &minT, &maxT, &avgH, &minH, &maxH)
	if err != nil {
		return AggregateRow{}, errors.WrapTransient(err, "Store", "AggregateByLocation", "aggregate samples")
	}

	row.AvgTemperature = avgT.Float64
	row.MinTemperature = minT.Float64
	row.MaxTemperature = maxT.Float64
	row.AvgHumidity = avgH.Float64
	row.MinHumidity = minH.Float64
	row.MaxHumidity = maxH.Float64
	return row, nil
}

// CountByProtocol returns the number of stored samples per device protocol.
// Protocols with no samples are absent from the map.
func (s *Store) CountByProtocol(ctx context.Context) (map[string]int64, error) {
	query := `SELECT d.protocol, COUNT(*)
		FROM samples s
		JOIN devices d ON d.id = s.device_id
		GROUP BY d.protocol`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "CountByProtocol", "query counts")
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var protocol string
		var n int64
		if err := rows.Scan(&protocol, &n); err != nil {
			return nil, errors.WrapTransient(err, "Store", "CountByProtocol", "scan count")
		}
		counts[protocol] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "CountByProtocol", "iterate counts")
	}
	return counts, nil
}

// AvgLatencyMsByProtocol returns the mean ingestion latency (received minus
// generated, in milliseconds) per device protocol.
func (s *Store) AvgLatencyMsByProtocol(ctx context.Context) (map[string]float64, error) {
	query := `SELECT d.protocol, AVG(s.received_at - s.generated_at)
		FROM samples s
		JOIN devices d ON d.id = s.device_id
		GROUP BY d.protocol`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "AvgLatencyMsByProtocol", "query latency")
	}
	defer rows.Close()

	latencies := map[string]float64{}
	for rows.Next() {
		var protocol string
		var ms sql.NullFloat64
		if err := rows.Scan(&protocol, &ms); err != nil {
			return nil, errors.WrapTransient(err, "Store", "AvgLatencyMsByProtocol", "scan latency")
		}
		latencies[protocol] = ms.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "AvgLatencyMsByProtocol", "iterate latency")
	}
	return latencies, nil
}

// DeleteAllSamples wipes the samples table. Devices are untouched.
func (s *Store) DeleteAllSamples(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples`)
	if err != nil {
		return 0, errors.WrapTransient(err, "Store", "DeleteAllSamples", "delete samples")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WrapTransient(err, "Store", "DeleteAllSamples", "count deleted samples")
	}
	return n, nil
}
