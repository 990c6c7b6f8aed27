// Package postgres offers an alternative ModelStore backend for edge
// gateways that already run a local Postgres. Atomicity comes from the
// transactional upsert instead of a file rename.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
	"screwdiag/ports"
)

// modelStore implements ports.ModelStore on Postgres
type modelStore struct {
	db *sqlx.DB
}

// carrierModelRow binds a carrier model to the carrier_models table
type carrierModelRow struct {
	CarrierID     string    `db:"carrier_id"`
	SchemaVersion int       `db:"schema_version"`
	Payload       []byte    `db:"payload"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// NewModelStore creates a Postgres-backed model store
func NewModelStore(db *sqlx.DB) ports.ModelStore {
	return &modelStore{db: db}
}

// Migrate creates the carrier model table if it does not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	query := `CREATE TABLE IF NOT EXISTS carrier_models (
		carrier_id     TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		payload        JSONB NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%w: migrate carrier_models: %v", core.ErrPersistenceFailed, err)
	}
	return nil
}

// Load reads the model for a carrier. Absence returns (nil, nil).
func (r *modelStore) Load(ctx context.Context, carrierID core.CarrierID) (*carrier.Model, error) {
	query := `SELECT payload FROM carrier_models WHERE carrier_id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, string(carrierID)).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load carrier %s: %v", core.ErrPersistenceFailed, carrierID, err)
	}

	var model carrier.Model
	if err := json.Unmarshal(payload, &model); err != nil {
		return nil, core.NewCorruptionError(carrierID, err)
	}
	if model.SchemaVersion != carrier.SchemaVersion {
		return nil, core.NewCorruptionError(carrierID,
			fmt.Errorf("schema_version %d, want %d", model.SchemaVersion, carrier.SchemaVersion))
	}
	return &model, nil
}

// Save upserts the full serialized model in one transaction
func (r *modelStore) Save(ctx context.Context, model *carrier.Model) error {
	if err := model.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("%w: marshal carrier %s: %v", core.ErrPersistenceFailed, model.CarrierID, err)
	}

	row := carrierModelRow{
		CarrierID:     string(model.CarrierID),
		SchemaVersion: model.SchemaVersion,
		Payload:       payload,
		UpdatedAt:     time.Now().UTC(),
	}

	query := `INSERT INTO carrier_models (carrier_id, schema_version, payload, updated_at)
		VALUES (:carrier_id, :schema_version, :payload, :updated_at)
		ON CONFLICT (carrier_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("%w: save carrier %s: %v", core.ErrPersistenceFailed, model.CarrierID, err)
	}
	return nil
}

// Delete removes the persisted model for a carrier; absent rows are a no-op
func (r *modelStore) Delete(ctx context.Context, carrierID core.CarrierID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carrier_models WHERE carrier_id = $1`, string(carrierID))
	if err != nil {
		return fmt.Errorf("%w: delete carrier %s: %v", core.ErrPersistenceFailed, carrierID, err)
	}
	return nil
}

// List returns every persisted carrier ID ordered lexicographically
func (r *modelStore) List(ctx context.Context) ([]core.CarrierID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT carrier_id FROM carrier_models ORDER BY carrier_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list carriers: %v", core.ErrPersistenceFailed, err)
	}
	defer rows.Close()

	var ids []core.CarrierID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan carrier id: %v", core.ErrPersistenceFailed, err)
		}
		ids = append(ids, core.CarrierID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list carriers: %v", core.ErrPersistenceFailed, err)
	}
	return ids, nil
}
