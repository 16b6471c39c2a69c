package domain

// RowSet keeps resolved rows keyed by (sku, retailer, month). A later Put for
// an existing key replaces the stored row but keeps its original position.
type RowSet struct {
	index map[RowKey]int
	rows  []ResolvedRow
}

func NewRowSet(capacity int) *RowSet {
	return &RowSet{
		index: make(map[RowKey]int, capacity),
		rows:  make([]ResolvedRow, 0, capacity),
	}
}

// Put stores row and returns the row it replaced, if any.
func (s *RowSet) Put(row ResolvedRow) (ResolvedRow, bool) {
	key := row.Key()
	if pos, ok := s.index[key]; ok {
		prev := s.rows[pos]
		s.rows[pos] = row
		return prev, true
	}
	s.index[key] = len(s.rows)
	s.rows = append(s.rows, row)
	return ResolvedRow{}, false
}

func (s *RowSet) Get(key RowKey) (ResolvedRow, bool) {
	pos, ok := s.index[key]
	if !ok {
		return ResolvedRow{}, false
	}
	return s.rows[pos], true
}

func (s *RowSet) Len() int {
	return len(s.rows)
}

// Rows returns the stored rows in first-seen key order.
func (s *RowSet) Rows() []ResolvedRow {
	out := make([]ResolvedRow, len(s.rows))
	copy(out, s.rows)
	return out
}
