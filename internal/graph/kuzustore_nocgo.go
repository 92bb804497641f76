//go:build !cgo

package graph

import "errors"

// ErrKuzuUnavailable is returned by the Kuzu constructors in builds without
// cgo.
var ErrKuzuUnavailable = errors.New("kuzu: graph store requires a cgo build")

// KuzuStore is unavailable without cgo. The type exists so callers compile.
type KuzuStore struct{ MemStore }

// NewKuzuStore always fails without cgo.
func NewKuzuStore() (*KuzuStore, error) { return nil, ErrKuzuUnavailable }

// NewKuzuFileStore always fails without cgo.
func NewKuzuFileStore(string) (*KuzuStore, error) { return nil, ErrKuzuUnavailable }
