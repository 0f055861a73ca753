package types

// Predicate is a single column=value equality condition.
type Predicate map[string]any

// FilterSet maps a table name to the predicate records the resolver has
// determined must be OR'd together to select that table's rows relevant
// to the current batch. The consumer always materializes at least the
// root-table slot; a batch with every slot empty must not be executed
// (empty filter is a full-table scan, forbidden by §3).
type FilterSet map[string][]Predicate

// NewFilterSet returns an empty FilterSet.
func NewFilterSet() FilterSet {
	return make(FilterSet)
}

// Add appends predicate to table's slot.
func (f FilterSet) Add(table string, predicate Predicate) {
	f[table] = append(f[table], predicate)
}

// IsEmpty reports whether every slot has zero predicates.
func (f FilterSet) IsEmpty() bool {
	for _, preds := range f {
		if len(preds) > 0 {
			return false
		}
	}
	return true
}

// Chunk splits predicates into groups of at most size, implementing the
// FILTER_CHUNK_SIZE batching described in §4.5. size <= 0 means no
// chunking.
func Chunk(predicates []Predicate, size int) [][]Predicate {
	if size <= 0 || len(predicates) <= size {
		if len(predicates) == 0 {
			return nil
		}
		return [][]Predicate{predicates}
	}
	var chunks [][]Predicate
	for len(predicates) > 0 {
		n := size
		if n > len(predicates) {
			n = len(predicates)
		}
		chunks = append(chunks, predicates[:n])
		predicates = predicates[n:]
	}
	return chunks
}
