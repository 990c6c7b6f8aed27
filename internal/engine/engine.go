// Package engine composes the diagnostic pipeline: feature extraction,
// physics constraints, adaptive learning, and persistence, confined to one
// goroutine per carrier at a time.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"screwdiag/adapters/stats/extract"
	"screwdiag/adapters/stats/physics"
	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
	"screwdiag/domain/curve"
	"screwdiag/domain/diagnosis"
	"screwdiag/internal"
	"screwdiag/internal/adaptive"
	"screwdiag/internal/config"
	"screwdiag/ports"
)

// carrierEntry confines a cached model to one diagnosis at a time
type carrierEntry struct {
	mu    sync.Mutex
	model *carrier.Model
}

// Engine owns the carrier cache, configuration, and persistence handle.
// There is no process-wide state; callers construct as many engines as
// they need, each with its own store.
type Engine struct {
	cfg       *config.Config
	store     ports.ModelStore
	extractor *extract.Extractor
	physics   *physics.Layer
	adaptive  *adaptive.Layer
	log       *internal.Logger

	mu    sync.RWMutex
	cache map[core.CarrierID]*carrierEntry

	batchSem *semaphore.Weighted
}

// New creates an engine from validated configuration and a model store
func New(cfg *config.Config, store ports.ModelStore, logger *internal.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", core.ErrConfigInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil model store", core.ErrConfigInvalid)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		extractor: extract.NewExtractor(),
		physics:   physics.NewLayer(cfg.Physics, cfg.Codes),
		adaptive:  adaptive.NewLayer(cfg.Tolerance, cfg.Learning, cfg.Codes, logger),
		log:       logger,
		cache:     make(map[core.CarrierID]*carrierEntry),
		batchSem:  semaphore.NewWeighted(int64(runtime.NumCPU())),
	}, nil
}

// Diagnose runs the full pipeline for every hole of one carrier. Holes are
// processed in lexicographic order so repeated runs are reproducible. The
// result map always covers every input hole; per-hole failures fold into
// their own results and never abort the batch. When auto-save is enabled a
// persistence failure is returned alongside the completed results.
func (e *Engine) Diagnose(ctx context.Context, carrierID core.CarrierID, data map[core.HoleID]curve.Curve) (map[core.HoleID]diagnosis.Result, error) {
	if _, err := core.ParseCarrierID(string(carrierID)); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCurve, err)
	}

	entry, err := e.resolveCarrier(ctx, carrierID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	batchID := core.BatchID(core.NewID())
	e.log.WithCarrier(carrierID).Debug("batch %s: diagnosing %d holes", batchID, len(data))

	now := core.Now()
	results := make(map[core.HoleID]diagnosis.Result, len(data))
	for _, holeID := range sortedHoleIDs(data) {
		results[holeID] = e.diagnoseHole(carrierID, holeID, entry.model, data[holeID], now)
	}

	if e.cfg.Store.AutoSave {
		if err := e.store.Save(ctx, entry.model); err != nil {
			e.log.WithCarrier(carrierID).Error("batch %s: save failed: %v", batchID, err)
			return results, err
		}
	}
	return results, nil
}

// diagnoseHole runs the layers in order for one hole
func (e *Engine) diagnoseHole(carrierID core.CarrierID, holeID core.HoleID, model *carrier.Model, c curve.Curve, now core.Timestamp) diagnosis.Result {
	fv, err := e.extractor.Extract(c)
	if err != nil {
		e.log.With(carrierID, holeID).Warn("rejected curve: %v", err)
		return badInputResult()
	}

	verdict := e.physics.Evaluate(fv)
	if verdict.Fatal {
		// A fatal physics violation is contaminated data; it must not
		// leak into the learned statistics.
		return diagnosis.Result{
			Status:   diagnosis.StatusNG,
			Features: fv,
			ScrewIssue: diagnosis.ScrewIssue{
				Status: diagnosis.StatusNG,
				ECodes: verdict.ECodes,
				RCodes: verdict.RCodes,
			},
		}
	}

	hole := model.Hole(holeID, e.cfg.Learning.WindowSize)
	outcome := e.adaptive.Observe(carrierID, holeID, hole, fv, now)

	status := diagnosis.StatusOK
	if !verdict.Pass || outcome.Status == diagnosis.StatusNG {
		status = diagnosis.StatusNG
	}
	return diagnosis.Result{
		Status:   status,
		Features: fv,
		ScrewIssue: diagnosis.ScrewIssue{
			Status: status,
			ECodes: append(append([]diagnosis.ECode{}, verdict.ECodes...), outcome.ECodes...),
			RCodes: append(append([]diagnosis.RCode{}, verdict.RCodes...), outcome.RCodes...),
		},
		OptimizationSuggestion: outcome.Suggestion,
	}
}

// DiagnoseBatch diagnoses several carriers concurrently. Each carrier is
// still confined to one goroutine; the semaphore bounds parallelism to the
// machine's cores.
func (e *Engine) DiagnoseBatch(ctx context.Context, payload map[core.CarrierID]map[core.HoleID]curve.Curve) (map[core.CarrierID]map[core.HoleID]diagnosis.Result, error) {
	results := make(map[core.CarrierID]map[core.HoleID]diagnosis.Result, len(payload))
	var (
		resultsMu sync.Mutex
		wg        sync.WaitGroup
		firstErr  error
	)

	for carrierID, holes := range payload {
		if err := e.batchSem.Acquire(ctx, 1); err != nil {
			return results, err
		}
		wg.Add(1)
		go func(carrierID core.CarrierID, holes map[core.HoleID]curve.Curve) {
			defer wg.Done()
			defer e.batchSem.Release(1)

			res, err := e.Diagnose(ctx, carrierID, holes)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if res != nil {
				results[carrierID] = res
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(carrierID, holes)
	}
	wg.Wait()
	return results, firstErr
}

// resolveCarrier returns the cached entry for a carrier, loading it from
// the store on first use. A corrupted persisted model is logged and
// treated as cold start.
func (e *Engine) resolveCarrier(ctx context.Context, carrierID core.CarrierID) (*carrierEntry, error) {
	e.mu.RLock()
	entry, ok := e.cache[carrierID]
	e.mu.RUnlock()
	if ok {
		return entry, nil
	}

	model, err := e.store.Load(ctx, carrierID)
	if err != nil {
		if core.IsPersistenceCorruption(err) {
			e.log.WithCarrier(carrierID).Warn("persisted model unreadable, starting cold: %v", err)
			model = nil
		} else {
			return nil, err
		}
	}
	if model == nil {
		model = carrier.NewModel(carrierID)
	}
	model.Normalize(e.cfg.Learning.WindowSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.cache[carrierID]; ok {
		// Another goroutine loaded it while we were reading the store.
		return entry, nil
	}
	entry = &carrierEntry{model: model}
	e.cache[carrierID] = entry
	return entry, nil
}

// ModelSnapshot returns a deep copy of a carrier's current model, loading
// it if necessary.
func (e *Engine) ModelSnapshot(ctx context.Context, carrierID core.CarrierID) (*carrier.Model, error) {
	entry, err := e.resolveCarrier(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.model.Clone(), nil
}

// Carriers returns the union of cached and persisted carrier IDs, sorted
func (e *Engine) Carriers(ctx context.Context) ([]core.CarrierID, error) {
	seen := make(map[core.CarrierID]bool)

	e.mu.RLock()
	for id := range e.cache {
		seen[id] = true
	}
	e.mu.RUnlock()

	stored, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range stored {
		seen[id] = true
	}

	ids := make([]core.CarrierID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Flush persists a carrier's model regardless of the auto-save policy
func (e *Engine) Flush(ctx context.Context, carrierID core.CarrierID) error {
	entry, err := e.resolveCarrier(ctx, carrierID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return e.store.Save(ctx, entry.model)
}

// ResetHole returns one hole to cold start and persists the change
func (e *Engine) ResetHole(ctx context.Context, carrierID core.CarrierID, holeID core.HoleID) error {
	entry, err := e.resolveCarrier(ctx, carrierID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	hole, ok := entry.model.Holes[holeID]
	if !ok {
		return core.NewNotFoundError("hole", holeID.String())
	}
	hole.Reset()
	e.log.With(carrierID, holeID).Info("reset to cold start")
	return e.store.Save(ctx, entry.model)
}

// ResetCarrier returns every hole of a carrier to cold start and persists
func (e *Engine) ResetCarrier(ctx context.Context, carrierID core.CarrierID) error {
	entry, err := e.resolveCarrier(ctx, carrierID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	for _, hole := range entry.model.Holes {
		hole.Reset()
	}
	e.log.WithCarrier(carrierID).Info("reset to cold start")
	return e.store.Save(ctx, entry.model)
}

// DeleteCarrier drops a carrier from the cache and the store. This is the
// only way a carrier model is destroyed.
func (e *Engine) DeleteCarrier(ctx context.Context, carrierID core.CarrierID) error {
	e.mu.Lock()
	delete(e.cache, carrierID)
	e.mu.Unlock()
	return e.store.Delete(ctx, carrierID)
}

// badInputResult is the isolated failure record for a rejected curve
func badInputResult() diagnosis.Result {
	return diagnosis.Result{
		Status: diagnosis.StatusNG,
		ScrewIssue: diagnosis.ScrewIssue{
			Status: diagnosis.StatusNG,
			ECodes: []diagnosis.ECode{diagnosis.ECodeBadInput},
			RCodes: []diagnosis.RCode{},
		},
	}
}

func sortedHoleIDs(data map[core.HoleID]curve.Curve) []core.HoleID {
	ids := make([]core.HoleID, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
