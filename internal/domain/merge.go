package domain

// Merger folds rows into a set unique by (date, model, scenario). The first
// row seen for a key is kept and later duplicates are discarded, so repeated
// deliveries of a unit never change the result.
//
// A Merger is not safe for concurrent use; callers collect outcomes first and
// fold them from a single goroutine.
type Merger struct {
	seen       map[RowKey]struct{}
	rows       []NormalizedRow
	duplicates int
}

// NewMerger returns an empty Merger.
func NewMerger() *Merger {
	return &Merger{seen: make(map[RowKey]struct{})}
}

// Add folds rows into the set and returns how many were new.
func (m *Merger) Add(rows ...NormalizedRow) int {
	added := 0
	for _, r := range rows {
		k := r.Key()
		if _, ok := m.seen[k]; ok {
			m.duplicates++
			continue
		}
		m.seen[k] = struct{}{}
		m.rows = append(m.rows, r)
		added++
	}
	return added
}

// Rows returns the unique rows in first-seen order.
func (m *Merger) Rows() []NormalizedRow { return m.rows }

// Len returns the number of unique rows.
func (m *Merger) Len() int { return len(m.rows) }

// Duplicates returns how many rows were discarded as repeats.
func (m *Merger) Duplicates() int { return m.duplicates }

// Merge folds batches in order and returns the unique rows.
func Merge(batches ...[]NormalizedRow) []NormalizedRow {
	m := NewMerger()
	for _, b := range batches {
		m.Add(b...)
	}
	return m.Rows()
}
