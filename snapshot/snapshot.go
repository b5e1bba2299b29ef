package snapshot

// Row is one formatted entry of a snapshot.
type Row struct {
	Label string
	Name  string
	Bytes int64
}

// Snapshot is the immutable result of one rebuild.
type Snapshot struct {
	rows  []Row
	total int64
}

var emptySnapshot = &Snapshot{}

func newSnapshot(rows []Row) *Snapshot {
	var total int64
	for _, r := range rows {
		total += r.Bytes
	}
	return &Snapshot{rows: rows, total: total}
}

// Len returns the number of rows.
func (s *Snapshot) Len() int { return len(s.rows) }

// At returns the row at index, or false if index is out of range.
func (s *Snapshot) At(index int) (Row, bool) {
	if index < 0 || index >= len(s.rows) {
		return Row{}, false
	}
	return s.rows[index], true
}

// Rows returns a copy of all rows in order.
func (s *Snapshot) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Labels returns the row labels in order.
func (s *Snapshot) Labels() []string {
	out := make([]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Label
	}
	return out
}

// TotalBytes sums the bytes of all rows.
func (s *Snapshot) TotalBytes() int64 { return s.total }
