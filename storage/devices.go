package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/pkg/timestamp"
)

const deviceColumns = "id, protocol, room, department, floor, building, active, created_at, updated_at"

func scanDevice(row interface{ Scan(...any) error }) (device.Device, error) {
	var d device.Device
	var protocol string
	err := row.Scan(&d.ID, &protocol, &d.Room, &d.Department, &d.Floor, &d.Building,
		&d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return device.Device{}, err
	}
	d.Protocol = device.Protocol(protocol)
	return d, nil
}

// CreateDevice inserts a new device. A missing ID is assigned a UUID.
// Returns the stored device with timestamps populated.
func (s *Store) CreateDevice(ctx context.Context, d device.Device) (device.Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := d.Validate(); err != nil {
		return device.Device{}, err
	}

	now := timestamp.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := s.rebind(`INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		d.ID, string(d.Protocol), d.Room, d.Department, d.Floor, d.Building,
		d.Active, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return device.Device{}, errors.WrapTransient(err, "Store", "CreateDevice", "insert device")
	}
	return d, nil
}

// GetDevice fetches a device by ID. Returns errors.ErrNotFound when absent.
func (s *Store) GetDevice(ctx context.Context, id string) (device.Device, error) {
	query := s.rebind(`SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`)
	d, err := scanDevice(s.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return device.Device{}, errors.WrapInvalid(errors.ErrNotFound, "Store", "GetDevice",
			fmt.Sprintf("device %s", id))
	}
	if err != nil {
		return device.Device{}, errors.WrapTransient(err, "Store", "GetDevice", "query device")
	}
	return d, nil
}

// UpdateDevice replaces the mutable fields of an existing device.
func (s *Store) UpdateDevice(ctx context.Context, d device.Device) (device.Device, error) {
	if err := d.Validate(); err != nil {
		return device.Device{}, err
	}

	d.UpdatedAt = timestamp.Now()
	query := s.rebind(`UPDATE devices
		SET protocol = ?, room = ?, department = ?, floor = ?, building = ?, active = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		string(d.Protocol), d.Room, d.Department, d.Floor, d.Building, d.Active, d.UpdatedAt, d.ID)
	if err != nil {
		return device.Device{}, errors.WrapTransient(err, "Store", "UpdateDevice", "update device")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return device.Device{}, errors.WrapInvalid(errors.ErrNotFound, "Store", "UpdateDevice",
			fmt.Sprintf("device %s", d.ID))
	}
	return s.GetDevice(ctx, d.ID)
}

// DeleteDevice removes a device and all samples recorded for it.
func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "Store", "DeleteDevice", "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM samples WHERE device_id = ?`), id); err != nil {
		return errors.WrapTransient(err, "Store", "DeleteDevice", "delete samples")
	}

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM devices WHERE id = ?`), id)
	if err != nil {
		return errors.WrapTransient(err, "Store", "DeleteDevice", "delete device")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.WrapInvalid(errors.ErrNotFound, "Store", "DeleteDevice",
			fmt.Sprintf("device %s", id))
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "Store", "DeleteDevice", "commit transaction")
	}
	return nil
}

func (s *Store) queryDevices(ctx context.Context, query string, args ...any) ([]device.Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "queryDevices", "query devices")
	}
	defer rows.Close()

	devices := []device.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, errors.WrapTransient(err, "Store", "queryDevices", "scan device")
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "queryDevices", "iterate devices")
	}
	return devices, nil
}

// ListDevices returns every registered device ordered by ID.
func (s *Store) ListDevices(ctx context.Context) ([]device.Device, error) {
	return s.queryDevices(ctx,
		s.rebind(`SELECT `+deviceColumns+` FROM devices ORDER BY id`))
}

// ListActiveDevices returns all devices currently marked active.
func (s *Store) ListActiveDevices(ctx context.Context) ([]device.Device, error) {
	return s.queryDevices(ctx,
		s.rebind(`SELECT `+deviceColumns+` FROM devices WHERE active ORDER BY id`))
}

// ListActiveDevicesByProtocol returns active devices assigned to one transport.
func (s *Store) ListActiveDevicesByProtocol(ctx context.Context, p device.Protocol) ([]device.Device, error) {
	return s.queryDevices(ctx,
		s.rebind(`SELECT `+deviceColumns+` FROM devices WHERE active AND protocol = ? ORDER BY id`),
		string(p))
}

// Exists reports whether a device with the given ID is registered.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	query := s.rebind(`SELECT 1 FROM devices WHERE id = ?`)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapTransient(err, "Store", "Exists", "query device")
	}
	return true, nil
}

// IsActive reports whether a device is registered and marked active.
func (s *Store) IsActive(ctx context.Context, id string) (bool, error) {
	var active bool
	query := s.rebind(`SELECT active FROM devices WHERE id = ?`)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&active)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapTransient(err, "Store", "IsActive", "query device")
	}
	return active, nil
}
