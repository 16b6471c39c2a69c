package importer

import (
	"context"
	"sort"
	"sync"
	"testing"

	"salesplan/internal/domain"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordKey struct {
	kind domain.RecordKind
	key  domain.RowKey
}

// memoryStore mimics the repository's upsert semantics in memory.
type memoryStore struct {
	mu        sync.Mutex
	skus      map[int64]string
	retailers map[int64]string
	records   map[recordKey]domain.ResolvedRow
	batches   []domain.ImportBatch
	listCalls int
	saveErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		skus:      map[int64]string{1: "A-1", 2: "A-2", 3: "A-3"},
		retailers: map[int64]string{10: "Walmart", 11: "Target"},
		records:   map[recordKey]domain.ResolvedRow{},
	}
}

func (m *memoryStore) ListSKUKeys(context.Context) ([]domain.MasterKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return masterKeys(m.skus), nil
}

func (m *memoryStore) ListRetailerKeys(context.Context) ([]domain.MasterKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return masterKeys(m.retailers), nil
}

func (m *memoryStore) ExistingSKUIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return existing(m.skus, ids), nil
}

func (m *memoryStore) ExistingRetailerIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return existing(m.retailers, ids), nil
}

func (m *memoryStore) SaveImport(_ context.Context, batch domain.ImportBatch, rows []domain.ResolvedRow) (domain.UpsertCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return domain.UpsertCounts{}, m.saveErr
	}
	var counts domain.UpsertCounts
	for _, row := range rows {
		key := recordKey{kind: batch.Kind, key: row.Key()}
		if _, ok := m.records[key]; ok {
			counts.Updated++
		} else {
			counts.Imported++
		}
		m.records[key] = row
	}
	m.batches = append(m.batches, batch)
	return counts, nil
}

func masterKeys(src map[int64]string) []domain.MasterKey {
	keys := make([]domain.MasterKey, 0, len(src))
	for id, key := range src {
		keys = append(keys, domain.MasterKey{ID: id, Key: key})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

func existing(src map[int64]string, ids []int64) map[int64]struct{} {
	found := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := src[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found
}

func workbookBytes(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for r, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow(sheet, axis, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func xlsxUpload(data []byte) Upload {
	return Upload{
		FileName:    "upload.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}
}
