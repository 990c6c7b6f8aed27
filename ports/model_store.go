package ports

import (
	"context"

	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
)

// ModelStore persists carrier models across restarts.
//
// Load returns (nil, nil) when no model exists for the carrier; absence is
// not an error. A present-but-unreadable model fails with
// core.ErrPersistenceCorruption so the caller can fall back to cold start.
// Save must be atomic: a failed save leaves any previously persisted model
// intact and fails with core.ErrPersistenceFailed.
type ModelStore interface {
	Load(ctx context.Context, carrierID core.CarrierID) (*carrier.Model, error)
	Save(ctx context.Context, model *carrier.Model) error
	Delete(ctx context.Context, carrierID core.CarrierID) error
	List(ctx context.Context) ([]core.CarrierID, error)
}
