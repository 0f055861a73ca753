package searchindex

import (
	"context"
	"sort"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// FakeClient is an in-memory Client used by resolver and orchestrator unit
// tests; it never talks to a real engine. Documents are keyed by
// (index, id) and store their META section verbatim so SearchByMeta can
// answer back-reference queries the way the real engine's terms query
// would.
type FakeClient struct {
	cap   Capability
	docs  map[string]map[string]fakeDoc
	calls []string
}

type fakeDoc struct {
	meta types.MetaSection
}

// NewFakeClient returns a FakeClient with the given capability flags.
func NewFakeClient(cap Capability) *FakeClient {
	return &FakeClient{cap: cap, docs: make(map[string]map[string]fakeDoc)}
}

func (f *FakeClient) Capability() Capability { return f.cap }

// Calls returns, for assertions, the method names invoked in order.
func (f *FakeClient) Calls() []string { return f.calls }

func (f *FakeClient) Bulk(ctx context.Context, index string, ops []types.BulkOp) (*BulkResult, error) {
	f.calls = append(f.calls, "Bulk")
	if f.docs[index] == nil {
		f.docs[index] = make(map[string]fakeDoc)
	}
	result := &BulkResult{}
	for _, op := range ops {
		switch op.OpType {
		case types.BulkIndex:
			meta, _ := op.Source["_meta"].(types.MetaSection)
			f.docs[index][op.ID] = fakeDoc{meta: meta}
			result.Indexed++
		case types.BulkDelete:
			if _, ok := f.docs[index][op.ID]; !ok && f.cap.SuppressDeleteErrors {
				continue
			}
			delete(f.docs[index], op.ID)
			result.Deleted++
		}
	}
	return result, nil
}

func (f *FakeClient) SearchByMeta(ctx context.Context, index, table string, keyValues map[string][]string) ([]string, error) {
	f.calls = append(f.calls, "SearchByMeta")
	var ids []string
	for id, doc := range f.docs[index] {
		cols, ok := doc.meta[table]
		if !ok {
			continue
		}
		if matchesAllColumns(cols, keyValues) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeClient) ScanAllDocIDs(ctx context.Context, index string) ([]string, error) {
	f.calls = append(f.calls, "ScanAllDocIDs")
	var ids []string
	for id := range f.docs[index] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeClient) ScanDocIDsByMetaTable(ctx context.Context, index, table string) ([]string, error) {
	f.calls = append(f.calls, "ScanDocIDsByMetaTable")
	var ids []string
	for id, doc := range f.docs[index] {
		if _, ok := doc.meta[table]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// PutDoc seeds a document directly, bypassing Bulk, for test setup.
func (f *FakeClient) PutDoc(index, id string, meta types.MetaSection) {
	if f.docs[index] == nil {
		f.docs[index] = make(map[string]fakeDoc)
	}
	f.docs[index][id] = fakeDoc{meta: meta}
}

func matchesAllColumns(cols map[string][]string, keyValues map[string][]string) bool {
	for col, wanted := range keyValues {
		have, ok := cols[col]
		if !ok {
			return false
		}
		if !anyIntersect(have, wanted) {
			return false
		}
	}
	return true
}

func anyIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
