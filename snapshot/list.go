// Package snapshot implements a rebuildable, ranked and filterable view over
// a set of live objects, exposed as an indexable sequence of rows.
package snapshot

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Request parameterizes one rebuild. A nil Match matches every row.
type Request struct {
	Match   Predicate
	Reverse bool
}

// Stats describes what a rebuild saw and kept.
type Stats struct {
	Scanned     int
	Hidden      int
	Unavailable int
	Unmatched   int
	Rows        int
	TotalBytes  int64
	Took        time.Duration
}

// Option configures a List.
type Option func(*options)

type options struct {
	logger log.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for skipped objects and rebuild summaries.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used to time rebuilds.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// List is a cached, ordered, filterable view over a Source. Readers never
// block and always observe one complete snapshot; Rebuild replaces it whole.
type List[T Object] struct {
	src    Source[T]
	sizer  Sizer[T]
	logger log.Logger
	now    func() time.Time

	rebuildMu sync.Mutex
	current   atomic.Pointer[Snapshot]
}

var _ Viewer = (*List[Object])(nil)

// New returns an empty list over src, sized by sizer.
func New[T Object](src Source[T], sizer Sizer[T], opts ...Option) *List[T] {
	o := options{
		logger: log.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &List[T]{
		src:    src,
		sizer:  sizer,
		logger: o.logger,
		now:    o.now,
	}
}

// Rebuild rescans the source and publishes a new snapshot. If the source
// fails, the previous snapshot stays in place and the error is returned.
// Objects whose size cannot be determined are skipped.
func (l *List[T]) Rebuild(req Request) (Stats, error) {
	l.rebuildMu.Lock()
	defer l.rebuildMu.Unlock()

	start := l.now()
	match := req.Match
	if match == nil {
		match = MatchAll
	}

	objs, err := l.src.FindAll()
	if err != nil {
		level.Warn(l.logger).Log("msg", "rebuild aborted, keeping previous snapshot", "err", err)
		return Stats{}, errors.Wrap(err, "scanning object source")
	}

	stats := Stats{Scanned: len(objs)}
	rows := make([]Row, 0, len(objs))
	for _, obj := range objs {
		if !obj.HideFlags().Visible() {
			stats.Hidden++
			continue
		}
		size, err := l.sizeOf(obj)
		if err != nil {
			stats.Unavailable++
			level.Debug(l.logger).Log("msg", "skipping object", "name", obj.Name(), "err", err)
			continue
		}
		label := FormatLabel(size, obj.Name())
		if !match(label) {
			stats.Unmatched++
			continue
		}
		rows = append(rows, Row{Label: label, Name: obj.Name(), Bytes: size})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Bytes > rows[j].Bytes
	})
	if req.Reverse {
		slices.Reverse(rows)
	}

	snap := newSnapshot(rows)
	l.current.Store(snap)

	stats.Rows = snap.Len()
	stats.TotalBytes = snap.TotalBytes()
	stats.Took = l.now().Sub(start)
	level.Debug(l.logger).Log(
		"msg", "rebuilt snapshot",
		"scanned", stats.Scanned,
		"hidden", stats.Hidden,
		"unavailable", stats.Unavailable,
		"unmatched", stats.Unmatched,
		"rows", stats.Rows,
		"reverse", req.Reverse,
		"took", stats.Took,
	)
	return stats, nil
}

func (l *List[T]) sizeOf(obj T) (int64, error) {
	size, err := l.sizer.SizeOf(obj)
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, errors.Wrapf(ErrNegativeSize, "%d bytes", size)
	}
	return size, nil
}

// Snapshot returns the currently published snapshot. It is empty before the
// first successful rebuild.
func (l *List[T]) Snapshot() *Snapshot {
	if s := l.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Ready reports whether a snapshot has been published.
func (l *List[T]) Ready() bool { return l.current.Load() != nil }

// Count returns the number of rows in the current snapshot.
func (l *List[T]) Count() int { return l.Snapshot().Len() }

// ElementAt returns the row at index in the current snapshot. Out-of-range
// indices yield false rather than an error.
func (l *List[T]) ElementAt(index int) (Row, bool) { return l.Snapshot().At(index) }
