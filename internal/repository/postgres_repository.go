package repository

import (
	"context"
	"errors"
	"fmt"

	"salesplan/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrUnknownKind = errors.New("unknown import kind")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListSKUKeys(ctx context.Context) ([]domain.MasterKey, error) {
	keys, err := r.listKeys(ctx, `SELECT id, sku_code FROM skus ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sku codes: %w", err)
	}
	return keys, nil
}

func (r *Repository) ListRetailerKeys(ctx context.Context) ([]domain.MasterKey, error) {
	keys, err := r.listKeys(ctx, `SELECT id, name FROM retailers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list retailer names: %w", err)
	}
	return keys, nil
}

func (r *Repository) listKeys(ctx context.Context, query string) ([]domain.MasterKey, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]domain.MasterKey, 0)
	for rows.Next() {
		var key domain.MasterKey
		if err := rows.Scan(&key.ID, &key.Key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *Repository) ExistingSKUIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	found, err := r.existingIDs(ctx, `SELECT id FROM skus WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check sku ids: %w", err)
	}
	return found, nil
}

func (r *Repository) ExistingRetailerIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	found, err := r.existingIDs(ctx, `SELECT id FROM retailers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check retailer ids: %w", err)
	}
	return found, nil
}

func (r *Repository) existingIDs(ctx context.Context, query string, ids []int64) (map[int64]struct{}, error) {
	found := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

const upsertForecastSQL = `
	INSERT INTO forecasts (sku_id, retailer_id, month, quantity, revenue, import_batch_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT ON CONSTRAINT forecasts_sku_retailer_month_key DO UPDATE
	SET
		quantity = EXCLUDED.quantity,
		revenue = EXCLUDED.revenue,
		import_batch_id = EXCLUDED.import_batch_id,
		updated_at = NOW()
	RETURNING (xmax = 0) AS inserted
`

const upsertSaleSQL = `
	INSERT INTO sales (sku_id, retailer_id, month, quantity, revenue, import_batch_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT ON CONSTRAINT sales_sku_retailer_month_key DO UPDATE
	SET
		quantity = EXCLUDED.quantity,
		revenue = EXCLUDED.revenue,
		import_batch_id = EXCLUDED.import_batch_id,
		updated_at = NOW()
	RETURNING (xmax = 0) AS inserted
`

func upsertStatement(kind domain.RecordKind) (string, error) {
	switch kind {
	case domain.KindForecast:
		return upsertForecastSQL, nil
	case domain.KindSale:
		return upsertSaleSQL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// SaveImport records the batch and upserts every row in one transaction.
// Either all rows land or none do.
func (r *Repository) SaveImport(ctx context.Context, batch domain.ImportBatch, rows []domain.ResolvedRow) (domain.UpsertCounts, error) {
	var counts domain.UpsertCounts
	upsertSQL, err := upsertStatement(batch.Kind)
	if err != nil {
		return counts, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO import_batches (id, kind, actor_id, row_count, skipped)
		VALUES ($1, $2, $3, $4, $5)
	`,
		batch.ID,
		string(batch.Kind),
		batch.ActorID,
		batch.RowCount,
		batch.Skipped,
	); err != nil {
		return counts, fmt.Errorf("insert import batch %s: %w", batch.ID, err)
	}

	queued := &pgx.Batch{}
	for _, row := range rows {
		queued.Queue(upsertSQL,
			row.SKUID,
			row.RetailerID,
			domain.MonthStart(row.Month),
			row.Quantity,
			nullDecimal(row.Revenue),
			batch.ID,
		)
	}

	results := tx.SendBatch(ctx, queued)
	for i, row := range rows {
		var inserted bool
		if err := results.QueryRow().Scan(&inserted); err != nil {
			_ = results.Close()
			return domain.UpsertCounts{}, fmt.Errorf("upsert row %d (sku %d, retailer %d, %s): %w",
				i+1, row.SKUID, row.RetailerID, row.Month.Format("2006-01"), err)
		}
		if inserted {
			counts.Imported++
		} else {
			counts.Updated++
		}
	}
	if err := results.Close(); err != nil {
		return domain.UpsertCounts{}, fmt.Errorf("close upsert batch: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE import_batches SET imported = $2, updated = $3 WHERE id = $1",
		batch.ID,
		counts.Imported,
		counts.Updated,
	); err != nil {
		return domain.UpsertCounts{}, fmt.Errorf("update import batch %s: %w", batch.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.UpsertCounts{}, fmt.Errorf("commit import tx: %w", err)
	}
	return counts, nil
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}
