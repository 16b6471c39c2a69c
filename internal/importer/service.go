// Package importer runs workbook imports in two independent steps. Preview
// checks, detects, parses and validates an upload without writing anything.
// Commit takes the rows a client accepted from a preview, confirms every
// referenced SKU and retailer still exists and upserts them in one
// transaction.
package importer

import (
	"context"
	"errors"
	"fmt"

	"salesplan/internal/domain"
	"salesplan/internal/excel"
	"salesplan/internal/validation"
	"salesplan/internal/wire"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultPreviewLimit = 100

// Store is the persistence the importer needs.
type Store interface {
	validation.MasterData
	ExistingSKUIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	ExistingRetailerIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	SaveImport(ctx context.Context, batch domain.ImportBatch, rows []domain.ResolvedRow) (domain.UpsertCounts, error)
}

type Options struct {
	MaxFileSize  int64
	PreviewLimit int
	HOPRetailer  string
	Validation   validation.Options
}

type Service struct {
	store     Store
	validator *validation.Validator
	payload   *validator.Validate
	log       *zap.Logger
	opts      Options
}

type PreviewResult struct {
	Format      domain.ExcelFormat
	Outcome     domain.ValidationOutcome
	Validation  wire.Validation
	PreviewData []wire.SerializedRow
}

func New(store Store, log *zap.Logger, opts Options) *Service {
	if opts.MaxFileSize <= 0 || opts.MaxFileSize > MaxFileSize {
		opts.MaxFileSize = MaxFileSize
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = DefaultPreviewLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		validator: validation.New(store, opts.Validation),
		payload:   validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
		opts:      opts,
	}
}

func (s *Service) PreviewForecast(ctx context.Context, upload Upload) (PreviewResult, error) {
	return s.Preview(ctx, domain.KindForecast, upload)
}

func (s *Service) PreviewSales(ctx context.Context, upload Upload) (PreviewResult, error) {
	return s.Preview(ctx, domain.KindSale, upload)
}

// Preview never writes. The returned error wraps one of the package's
// sentinel errors; row problems are reported in the result instead.
func (s *Service) Preview(ctx context.Context, kind domain.RecordKind, upload Upload) (PreviewResult, error) {
	if err := CheckUpload(upload, s.opts.MaxFileSize); err != nil {
		return PreviewResult{}, err
	}

	wb, err := excel.Load(upload.Data)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}

	format, err := excel.Detect(wb)
	if err != nil {
		return PreviewResult{}, err
	}
	if format.Kind() != kind {
		return PreviewResult{}, fmt.Errorf("%w: %s workbook sent to %s import", ErrWrongFormat, format, kind)
	}

	rows, err := excel.Parse(format, wb, excel.Options{HOPRetailer: s.opts.HOPRetailer})
	if err != nil {
		return PreviewResult{}, err
	}
	if len(rows) == 0 {
		return PreviewResult{}, fmt.Errorf("%w: %s workbook %q", ErrNoDataRows, format, upload.FileName)
	}

	outcome, err := s.validator.Validate(ctx, rows)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	serialized := wire.SerializeOutcome(outcome)
	sample := serialized.Valid
	if len(sample) > s.opts.PreviewLimit {
		sample = sample[:s.opts.PreviewLimit]
	}

	s.log.Info("import preview",
		zap.String("file", upload.FileName),
		zap.String("format", string(format)),
		zap.Int("rows", outcome.Summary.TotalRows),
		zap.Int("valid", outcome.Summary.ValidRows),
		zap.Int("error_rows", outcome.Summary.ErrorRows),
		zap.Int("warning_rows", outcome.Summary.WarningRows),
	)

	return PreviewResult{
		Format:      format,
		Outcome:     outcome,
		Validation:  serialized,
		PreviewData: sample,
	}, nil
}

func (s *Service) CommitForecasts(ctx context.Context, rows []wire.SerializedRow, actorID string) (domain.CommitResult, error) {
	return s.Commit(ctx, domain.KindForecast, rows, actorID)
}

func (s *Service) CommitSales(ctx context.Context, rows []wire.SerializedRow, actorID string) (domain.CommitResult, error) {
	return s.Commit(ctx, domain.KindSale, rows, actorID)
}

type commitPayload struct {
	Rows []wire.SerializedRow `validate:"required,dive"`
}

// Commit persists previously previewed rows. Ids are re-checked against
// master data; rows whose ids no longer exist are dropped, and the commit
// fails only if nothing survives.
func (s *Service) Commit(ctx context.Context, kind domain.RecordKind, rows []wire.SerializedRow, actorID string) (domain.CommitResult, error) {
	if actorID == "" {
		return domain.CommitResult{}, ErrUnauthorized
	}
	if len(rows) == 0 {
		return domain.CommitResult{}, ErrNoRowsToImport
	}
	if err := s.payload.Struct(commitPayload{Rows: rows}); err != nil {
		return domain.CommitResult{}, fmt.Errorf("%w: %s", ErrInvalidPayload, describeValidation(err))
	}

	decoded, err := wire.DeserializeRows(rows, kind)
	if err != nil {
		return domain.CommitResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	confirmed, err := s.confirmReferences(ctx, decoded)
	if err != nil {
		return domain.CommitResult{}, err
	}
	skipped := len(decoded) - len(confirmed)
	if skipped > 0 {
		s.log.Warn("commit rows dropped by security validation",
			zap.String("kind", string(kind)),
			zap.String("actor", actorID),
			zap.Int("dropped", skipped),
		)
	}
	if len(confirmed) == 0 {
		return domain.CommitResult{}, fmt.Errorf("%w: all %d rows reference unknown ids", ErrSecurityValidation, len(decoded))
	}

	set := domain.NewRowSet(len(confirmed))
	for _, row := range confirmed {
		set.Put(row)
	}
	unique := set.Rows()

	batch := domain.ImportBatch{
		ID:       uuid.New(),
		Kind:     kind,
		ActorID:  actorID,
		RowCount: len(unique),
		Skipped:  skipped,
	}
	counts, err := s.store.SaveImport(ctx, batch, unique)
	if err != nil {
		s.log.Error("commit failed",
			zap.String("batch_id", batch.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return domain.CommitResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.log.Info("commit complete",
		zap.String("batch_id", batch.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("actor", actorID),
		zap.Int("imported", counts.Imported),
		zap.Int("updated", counts.Updated),
		zap.Int("skipped", skipped),
	)

	return domain.CommitResult{
		BatchID:  batch.ID,
		Imported: counts.Imported,
		Updated:  counts.Updated,
		Skipped:  skipped,
	}, nil
}

// confirmReferences keeps rows whose SKU and retailer ids exist right now
// and whose quantity is not negative.
func (s *Service) confirmReferences(ctx context.Context, rows []domain.ResolvedRow) ([]domain.ResolvedRow, error) {
	skuIDs := make([]int64, 0, len(rows))
	retailerIDs := make([]int64, 0, len(rows))
	seenSKU := make(map[int64]struct{}, len(rows))
	seenRetailer := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seenSKU[row.SKUID]; !ok {
			seenSKU[row.SKUID] = struct{}{}
			skuIDs = append(skuIDs, row.SKUID)
		}
		if _, ok := seenRetailer[row.RetailerID]; !ok {
			seenRetailer[row.RetailerID] = struct{}{}
			retailerIDs = append(retailerIDs, row.RetailerID)
		}
	}

	var skus, retailers map[int64]struct{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.store.ExistingSKUIDs(gctx, skuIDs)
		if err != nil {
			return fmt.Errorf("check sku ids: %w", err)
		}
		skus = found
		return nil
	})
	g.Go(func() error {
		found, err := s.store.ExistingRetailerIDs(gctx, retailerIDs)
		if err != nil {
			return fmt.Errorf("check retailer ids: %w", err)
		}
		retailers = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	kept := make([]domain.ResolvedRow, 0, len(rows))
	for _, row := range rows {
		if _, ok := skus[row.SKUID]; !ok {
			continue
		}
		if _, ok := retailers[row.RetailerID]; !ok {
			continue
		}
		if row.Quantity < 0 {
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return fmt.Sprintf("%s failed %q (%d problems)", first.Namespace(), first.Tag(), len(fieldErrs))
	}
	return err.Error()
}
