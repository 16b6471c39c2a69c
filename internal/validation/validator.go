// Package validation resolves parsed spreadsheet rows against master data and
// sorts them into importable rows, row errors and advisory warnings.
package validation

import (
	"context"
	"fmt"
	"time"

	"salesplan/internal/domain"

	"golang.org/x/sync/errgroup"
)

const DefaultHorizonMonths = 18

// MasterData lists the SKU codes and retailer names rows can refer to.
type MasterData interface {
	ListSKUKeys(ctx context.Context) ([]domain.MasterKey, error)
	ListRetailerKeys(ctx context.Context) ([]domain.MasterKey, error)
}

type Options struct {
	Matcher Matcher
	// HorizonMonths is how far past the current month a row may fall before
	// it is flagged with FarFutureMonth.
	HorizonMonths int
	Now           func() time.Time
}

type Validator struct {
	master MasterData
	opts   Options
}

func New(master MasterData, opts Options) *Validator {
	if opts.HorizonMonths <= 0 {
		opts.HorizonMonths = DefaultHorizonMonths
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Validator{master: master, opts: opts}
}

// Validate never fails because of row content; an error means master data
// could not be read.
func (v *Validator) Validate(ctx context.Context, rows []domain.ParsedRow) (domain.ValidationOutcome, error) {
	skus, retailers, err := v.loadLookups(ctx)
	if err != nil {
		return domain.ValidationOutcome{}, err
	}

	horizon := domain.MonthStart(v.opts.Now()).AddDate(0, v.opts.HorizonMonths, 0)
	set := domain.NewRowSet(len(rows))
	outcome := domain.ValidationOutcome{
		Errors:   []domain.RowIssue{},
		Warnings: []domain.RowIssue{},
		Summary: domain.ValidationSummary{
			TotalRows:     len(rows),
			ErrorCounts:   map[domain.IssueCode]int{},
			WarningCounts: map[domain.IssueCode]int{},
		},
	}

	for _, row := range rows {
		var errs []domain.RowIssue

		skuID, skuState := skus.resolve(v.opts.Matcher.Normalize(row.SKUCode))
		switch skuState {
		case unknown:
			errs = append(errs, issue(domain.IssueUnknownSKU, row, "SKU %q not found", row.SKUCode))
		case ambiguous:
			errs = append(errs, issue(domain.IssueAmbiguousSKU, row, "SKU %q matches more than one product", row.SKUCode))
		}

		retailerID, retailerState := retailers.resolve(v.opts.Matcher.Normalize(row.RetailerName))
		switch retailerState {
		case unknown:
			errs = append(errs, issue(domain.IssueUnknownRetailer, row, "retailer %q not found", row.RetailerName))
		case ambiguous:
			errs = append(errs, issue(domain.IssueAmbiguousRetailer, row, "retailer %q matches more than one retailer", row.RetailerName))
		}

		if row.Quantity < 0 {
			errs = append(errs, issue(domain.IssueInvalidQuantity, row, "quantity %d is negative", row.Quantity))
		}

		if len(errs) > 0 {
			outcome.Errors = append(outcome.Errors, errs...)
			outcome.Summary.ErrorRows++
			for _, e := range errs {
				outcome.Summary.ErrorCounts[e.Code]++
			}
			continue
		}

		var warns []domain.RowIssue
		if row.Quantity == 0 {
			warns = append(warns, issue(domain.IssueZeroQuantity, row, "quantity is zero"))
		}
		if row.Month.After(horizon) {
			warns = append(warns, issue(domain.IssueFarFutureMonth, row,
				"month %s is more than %d months ahead", row.Month.Format("2006-01"), v.opts.HorizonMonths))
		}

		prev, replaced := set.Put(domain.ResolvedRow{ParsedRow: row, SKUID: skuID, RetailerID: retailerID})
		if replaced {
			outcome.Summary.DuplicateRows++
			warns = append(warns, issue(domain.IssueDuplicateKey, row,
				"replaces %s row %d for the same SKU, retailer and month", prev.Sheet, prev.RowNumber))
		}

		if len(warns) > 0 {
			outcome.Warnings = append(outcome.Warnings, warns...)
			outcome.Summary.WarningRows++
			for _, w := range warns {
				outcome.Summary.WarningCounts[w.Code]++
			}
		}
	}

	outcome.Valid = set.Rows()
	outcome.Summary.ValidRows = set.Len()
	return outcome, nil
}

func (v *Validator) loadLookups(ctx context.Context) (lookup, lookup, error) {
	var skuKeys, retailerKeys []domain.MasterKey
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := v.master.ListSKUKeys(gctx)
		if err != nil {
			return fmt.Errorf("list skus: %w", err)
		}
		skuKeys = keys
		return nil
	})
	g.Go(func() error {
		keys, err := v.master.ListRetailerKeys(gctx)
		if err != nil {
			return fmt.Errorf("list retailers: %w", err)
		}
		retailerKeys = keys
		return nil
	})
	if err := g.Wait(); err != nil {
		return lookup{}, lookup{}, err
	}
	return v.opts.Matcher.index(skuKeys), v.opts.Matcher.index(retailerKeys), nil
}

func issue(code domain.IssueCode, row domain.ParsedRow, format string, args ...any) domain.RowIssue {
	return domain.RowIssue{Code: code, Reason: fmt.Sprintf(format, args...), Row: row}
}
