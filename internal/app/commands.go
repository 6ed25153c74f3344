package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_pricing/internal/adapters/observability"
	"hotel_pricing/internal/adapters/workbook"
	"hotel_pricing/internal/domain"
)

const (
	referenceCacheKey = "reference:v1"
	invalidateTimeout = 5 * time.Second
)

// ErrPersistence marks a failure while writing price bands. Some rows may already be saved;
// re-running the same file is safe.
var ErrPersistence = errors.New("pricing import: persistence failed")

// ImportFailure rejects a whole upload. Nothing has been written when it is returned.
type ImportFailure struct {
	Errors   []domain.ParseError
	Warnings []string
	Stats    domain.ImportStats
}

func (f *ImportFailure) Error() string {
	return fmt.Sprintf("pricing import rejected: %d error(s)", len(f.Errors))
}

type ImportRequest struct {
	FileName string
	// SheetName forces a workbook sheet; empty auto-detects.
	SheetName string
	Data      []byte
	// DryRun validates and plans against stored pricing without writing.
	DryRun bool
}

type ImportService struct {
	refs       domain.ReferenceProvider
	cache      domain.Cache
	authz      domain.Authorizer
	reconciler *Reconciler
	refTTL     time.Duration
}

// NewImportService wires the pipeline. cache and authz may be nil: no caching, and every caller allowed.
func NewImportService(refs domain.ReferenceProvider, cache domain.Cache, authz domain.Authorizer, rec *Reconciler, refTTL time.Duration) *ImportService {
	return &ImportService{refs: refs, cache: cache, authz: authz, reconciler: rec, refTTL: refTTL}
}

// Import parses, validates and reconciles one upload. Errors:
//   - *ImportFailure: row-level defects, nothing persisted
//   - workbook.ErrUnreadable: the file is not a table
//   - domain.ErrForbidden: the caller may not import
//   - ErrPersistence: storage failed mid-run
func (s *ImportService) Import(ctx context.Context, who domain.Principal, req ImportRequest) (domain.ImportResult, error) {
	if s.authz != nil && !s.authz.Allow(ctx, who, domain.ActionImportPricing) {
		observability.ObserveImport("forbidden", 0, 0, 0)
		return domain.ImportResult{}, domain.ErrForbidden
	}

	id := uuid.NewString()
	logger := log.With().Str("import_id", id).Str("file", req.FileName).Str("principal", who.Name).Logger()

	done := observability.StageTimer("parse")
	parsed, err := workbook.Parse(req.Data, workbook.Options{FileName: req.FileName, SheetName: req.SheetName})
	done()
	if err != nil {
		observability.ObserveImport("unreadable", 0, 0, 0)
		logger.Warn().Err(err).Msg("import unreadable")
		return domain.ImportResult{}, err
	}

	done = observability.StageTimer("reference")
	ref, err := s.referenceData(ctx)
	done()
	if err != nil {
		observability.ObserveImport("error", 0, 0, 0)
		return domain.ImportResult{}, fmt.Errorf("load reference data: %w", err)
	}

	done = observability.StageTimer("validate")
	prepared, vWarnings, vErr := MapRowsToPrepared(parsed.Rows, BuildLookupMaps(ref))
	done()
	warnings := append(slices.Clone(parsed.Warnings), vWarnings...)

	errs := slices.Clone(parsed.Errors)
	var ve *ValidationError
	if errors.As(vErr, &ve) {
		errs = append(errs, ve.Errors...)
	}
	if len(errs) > 0 {
		slices.SortStableFunc(errs, func(a, b domain.ParseError) int { return cmp.Compare(a.RowNumber, b.RowNumber) })
		observability.ObserveImport("validation", 0, 0, len(warnings))
		logger.Info().
			Str("sheet", parsed.Stats.SheetName).
			Int("errors", len(errs)).
			Int("warnings", len(warnings)).
			Msg("import rejected")
		return domain.ImportResult{}, &ImportFailure{Errors: errs, Warnings: warnings, Stats: parsed.Stats}
	}

	var res ReconcileResult
	done = observability.StageTimer("reconcile")
	if req.DryRun {
		res, err = s.reconciler.Preview(ctx, prepared)
	} else {
		res, err = s.reconciler.Reconcile(ctx, prepared)
		// bands written before a failure still invalidate their hotels
		s.invalidateHotels(ctx, res.HotelIDs)
	}
	done()
	if err != nil {
		observability.ObserveImport("persistence", res.Created, res.Updated, len(warnings))
		logger.Error().Err(err).
			Int("created", res.Created).
			Int("updated", res.Updated).
			Msg("import persistence failed")
		return domain.ImportResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	warnings = append(warnings, res.Warnings...)

	out := domain.ImportResult{
		ImportID: id,
		Summary: domain.ImportSummary{
			SheetName:        parsed.Stats.SheetName,
			Processed:        res.Processed,
			Created:          res.Created,
			Updated:          res.Updated,
			SkippedEmptyRows: parsed.Stats.SkippedEmptyRows,
			FileName:         req.FileName,
			DryRun:           req.DryRun,
		},
		Warnings: warnings,
	}
	if req.DryRun {
		observability.ObserveImport("dry_run", 0, 0, len(warnings))
	} else {
		observability.ObserveImport("ok", res.Created, res.Updated, len(warnings))
	}
	logger.Info().
		Str("sheet", out.Summary.SheetName).
		Int("processed", out.Summary.Processed).
		Int("created", out.Summary.Created).
		Int("updated", out.Summary.Updated).
		Int("skipped_empty", out.Summary.SkippedEmptyRows).
		Int("warnings", len(warnings)).
		Bool("dry_run", req.DryRun).
		Msg("import completed")
	return out, nil
}

// referenceData is cache-aside; cache failures fall through to the provider.
func (s *ImportService) referenceData(ctx context.Context) (domain.ReferenceData, error) {
	if s.cache != nil {
		var ref domain.ReferenceData
		ok, err := s.cache.Get(ctx, referenceCacheKey, &ref)
		if err != nil {
			log.Warn().Err(err).Msg("reference cache read failed")
		}
		if ok && err == nil {
			return ref, nil
		}
	}
	ref, err := s.refs.LoadReferenceData(ctx)
	if err != nil {
		return domain.ReferenceData{}, err
	}
	if s.cache != nil && s.refTTL > 0 {
		if err := s.cache.Set(ctx, referenceCacheKey, ref, int(s.refTTL.Seconds())); err != nil {
			log.Warn().Err(err).Msg("reference cache write failed")
		}
	}
	return ref, nil
}

func (s *ImportService) invalidateHotels(ctx context.Context, ids []int64) {
	if s.cache == nil {
		return
	}
	// runs after failures too, when the request context may already be cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	for _, id := range ids {
		if err := s.cache.Del(ctx, hotelPricingKey(id)); err != nil {
			log.Warn().Err(err).Int64("hotel_id", id).Msg("hotel pricing cache invalidation failed")
		}
	}
}
