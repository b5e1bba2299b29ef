package snapshot

import "github.com/cockroachdb/errors"

var (
	// ErrObjectUnavailable is returned by a Sizer when the object went away
	// between the scan and the size query.
	ErrObjectUnavailable = errors.New("object no longer available")
	// ErrNegativeSize marks a size answer below zero.
	ErrNegativeSize = errors.New("negative object size")
)

// Object is the capability a listed object must provide.
type Object interface {
	Name() string
	HideFlags() HideFlags
}

// Source enumerates every live object of one kind.
type Source[T Object] interface {
	FindAll() ([]T, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc[T Object] func() ([]T, error)

func (f SourceFunc[T]) FindAll() ([]T, error) { return f() }

// Sizer reports the memory footprint of an object in bytes.
type Sizer[T Object] interface {
	SizeOf(obj T) (int64, error)
}

// SizerFunc adapts a function to a Sizer.
type SizerFunc[T Object] func(obj T) (int64, error)

func (f SizerFunc[T]) SizeOf(obj T) (int64, error) { return f(obj) }

// Viewer is the contract between a list and the widget that renders it.
type Viewer interface {
	Rebuild(req Request) (Stats, error)
	Count() int
	ElementAt(index int) (Row, bool)
}
