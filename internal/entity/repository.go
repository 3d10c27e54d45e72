package entity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/database"
)

// Repository defines the persistence operations behind the Registry.
type Repository interface {
	ListEntities(ctx context.Context) ([]Entity, error)
	CreateEntity(ctx context.Context, e *Entity) error
	// DeleteEntity returns ErrEntityNotFound if the entity does not exist.
	DeleteEntity(ctx context.Context, id string) error

	ListDevices(ctx context.Context) ([]Device, error)
	CreateDevice(ctx context.Context, d *Device) error
	UpdateDevice(ctx context.Context, d *Device) error
	// DeleteDevice removes the device and every entity attached to it.
	// Returns ErrDeviceNotFound if the device does not exist.
	DeleteDevice(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the tracker database.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository. The schema must already be
// migrated (see package migrations).
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const timeFormat = time.RFC3339Nano

// ListEntities returns every entity ordered by creation time.
func (r *SQLiteRepository) ListEntities(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, config_entry_id, domain, unique_id, device_id, name, created_at
		FROM entities
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var (
			e         Entity
			deviceID  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ConfigEntryID, &e.Domain, &e.UniqueID, &deviceID, &e.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		e.DeviceID = deviceID.String
		e.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing entity %s created_at: %w", e.ID, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// CreateEntity inserts an entity.
func (r *SQLiteRepository) CreateEntity(ctx context.Context, e *Entity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (id, config_entry_id, domain, unique_id, device_id, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConfigEntryID, string(e.Domain), e.UniqueID, nullString(e.DeviceID), e.Name,
		e.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEntityExists
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// DeleteEntity removes an entity by ID.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	return expectOne(res, ErrEntityNotFound)
}

// ListDevices returns every device ordered by creation time.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, config_entry_id, mac, name, manufacturer, model, via_device, created_at
		FROM devices
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var (
			d         Device
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.ConfigEntryID, &d.MAC, &d.Name, &d.Manufacturer, &d.Model, &d.ViaDevice, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing device %s created_at: %w", d.ID, err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// CreateDevice inserts a device.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, d *Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, config_entry_id, mac, name, manufacturer, model, via_device, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ConfigEntryID, d.MAC, d.Name, d.Manufacturer, d.Model, d.ViaDevice,
		d.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// UpdateDevice rewrites a device's descriptive fields.
func (r *SQLiteRepository) UpdateDevice(ctx context.Context, d *Device) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET name = ?, manufacturer = ?, model = ?, via_device = ?
		WHERE id = ?`,
		d.Name, d.Manufacturer, d.Model, d.ViaDevice, d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return expectOne(res, ErrDeviceNotFound)
}

// DeleteDevice removes a device and its entities in one transaction.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE device_id = ?", id); err != nil {
			return fmt.Errorf("deleting device entities: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting device: %w", err)
		}
		return expectOne(res, ErrDeviceNotFound)
	})
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
