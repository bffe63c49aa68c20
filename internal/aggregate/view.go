// Package aggregate merges independently subscribed partitions into one
// read-only view and re-derives statistics over it after every merge.
package aggregate

import "sort"

// Row is one entry of a merged view, tagged with the partition it came from.
type Row[T any] struct {
	Partition string
	Key       string
	Value     T
}

// View is an immutable merged view. Rows are addressed by (partition, key),
// so partitions never overwrite each other even when keys collide.
type View[T any] struct {
	parts map[string]map[string]T
}

// NewView returns an empty view.
func NewView[T any]() View[T] {
	return View[T]{parts: map[string]map[string]T{}}
}

// Merge returns a new view in which partition's rows are exactly snapshot.
// Rows of other partitions are carried over untouched; v is not modified.
func Merge[T any](v View[T], partition string, snapshot map[string]T) View[T] {
	parts := make(map[string]map[string]T, len(v.parts)+1)
	for p, rows := range v.parts {
		if p != partition {
			parts[p] = rows
		}
	}
	fresh := make(map[string]T, len(snapshot))
	for k, row := range snapshot {
		fresh[k] = row
	}
	parts[partition] = fresh
	return View[T]{parts: parts}
}

// Len returns the number of rows across all partitions.
func (v View[T]) Len() int {
	n := 0
	for _, rows := range v.parts {
		n += len(rows)
	}
	return n
}

// Has reports whether partition has delivered at least one snapshot.
func (v View[T]) Has(partition string) bool {
	_, ok := v.parts[partition]
	return ok
}

// Get looks up one row.
func (v View[T]) Get(partition, key string) (T, bool) {
	row, ok := v.parts[partition][key]
	return row, ok
}

// PartitionLen returns the number of rows contributed by partition.
func (v View[T]) PartitionLen(partition string) int {
	return len(v.parts[partition])
}

// Each calls fn for every row in unspecified order.
func (v View[T]) Each(fn func(partition, key string, value T)) {
	for p, rows := range v.parts {
		for k, row := range rows {
			fn(p, k, row)
		}
	}
}

// Rows lists every row ordered by partition, then key.
func (v View[T]) Rows() []Row[T] {
	out := make([]Row[T], 0, v.Len())
	v.Each(func(p, k string, value T) {
		out = append(out, Row[T]{Partition: p, Key: k, Value: value})
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Partition != out[j].Partition {
			return out[i].Partition < out[j].Partition
		}
		return out[i].Key < out[j].Key
	})
	return out
}
