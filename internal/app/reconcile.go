package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"hotel_pricing/internal/domain"
)

const defaultReconcileWorkers = 4

// Reconciler upserts prepared rows: an existing band with the exact same range is updated,
// anything else is created. Overlaps with persisted bands are reported, never blocked.
type Reconciler struct {
	repo    domain.PricingRepository
	workers int
}

func NewReconciler(repo domain.PricingRepository, workers int) *Reconciler {
	if workers <= 0 {
		workers = defaultReconcileWorkers
	}
	return &Reconciler{repo: repo, workers: workers}
}

type ReconcileResult struct {
	Processed int
	Created   int
	Updated   int
	Warnings  []string
	// HotelIDs lists every hotel touched, in first-seen order.
	HotelIDs []int64
}

type reconcileOp struct {
	row      domain.PreparedRow
	updateID int64 // 0: create
}

// Reconcile must only be called with rows that passed validation. Warnings and the
// create/update decision are computed in row order before any write; writes then run
// concurrently and the first failure aborts the rest. Rows already written stay written,
// re-running the same import is safe because exact-range rows become updates.
func (r *Reconciler) Reconcile(ctx context.Context, prepared []domain.PreparedRow) (ReconcileResult, error) {
	res, plan, err := r.plan(ctx, prepared)
	if err != nil || len(plan) == 0 {
		return res, err
	}

	var created, updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, op := range plan {
		op := op
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if op.updateID != 0 {
				if err := r.repo.UpdatePricing(gctx, op.updateID, op.row.Price, op.row.IsActive); err != nil {
					return fmt.Errorf("row %d: update pricing #%d: %w", op.row.RowNumber, op.updateID, err)
				}
				updated.Add(1)
				return nil
			}
			if _, err := r.repo.CreatePricing(gctx, op.row.Pricing()); err != nil {
				return fmt.Errorf("row %d: create pricing: %w", op.row.RowNumber, err)
			}
			created.Add(1)
			return nil
		})
	}
	err = g.Wait()
	res.Created, res.Updated = int(created.Load()), int(updated.Load())
	return res, err
}

// Preview reports what Reconcile would do, warnings included, without writing.
func (r *Reconciler) Preview(ctx context.Context, prepared []domain.PreparedRow) (ReconcileResult, error) {
	res, plan, err := r.plan(ctx, prepared)
	if err != nil {
		return res, err
	}
	for _, op := range plan {
		if op.updateID != 0 {
			res.Updated++
		} else {
			res.Created++
		}
	}
	return res, nil
}

func (r *Reconciler) plan(ctx context.Context, prepared []domain.PreparedRow) (ReconcileResult, []reconcileOp, error) {
	res := ReconcileResult{Processed: len(prepared)}
	if len(prepared) == 0 {
		return res, nil, nil
	}

	keys := make([]domain.CombinationKey, 0, len(prepared))
	seenKey := make(map[domain.CombinationKey]bool)
	seenHotel := make(map[int64]bool)
	for _, p := range prepared {
		if k := p.Key(); !seenKey[k] {
			seenKey[k] = true
			keys = append(keys, k)
		}
		if !seenHotel[p.HotelID] {
			seenHotel[p.HotelID] = true
			res.HotelIDs = append(res.HotelIDs, p.HotelID)
		}
	}

	existing, err := r.repo.FindByCombinations(ctx, keys)
	if err != nil {
		return res, nil, fmt.Errorf("load existing pricing: %w", err)
	}
	byKey := make(map[domain.CombinationKey][]domain.Pricing, len(keys))
	for _, e := range existing {
		byKey[e.Key()] = append(byKey[e.Key()], e)
	}

	plan := make([]reconcileOp, 0, len(prepared))
	for _, p := range prepared {
		op := reconcileOp{row: p}
		bands := byKey[p.Key()]
		for _, e := range bands {
			if e.Range().Equal(p.Range()) {
				op.updateID = e.ID
				break
			}
		}
		if op.updateID == 0 {
			for _, e := range bands {
				if p.Range().Overlaps(e.Range()) {
					res.Warnings = append(res.Warnings, fmt.Sprintf(
						"row %d (%s) %s overlaps existing pricing #%d %s; a separate band was created",
						p.RowNumber, p.OccupancyTypeLabel, p.Range(), e.ID, e.Range()))
				}
			}
		}
		plan = append(plan, op)
	}
	return res, plan, nil
}
