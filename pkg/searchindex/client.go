package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/cuemby/pgsyncd/pkg/metrics"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// Capability absorbs engine-version differences so the resolver and
// executor never branch on engine identity.
type Capability struct {
	// SupportsTypeField reports whether bulk actions must carry a
	// "_type": "_doc" field, true for engines with major_version < 7
	// that are not the alternative engine.
	SupportsTypeField bool

	// SuppressDeleteErrors reports whether errors on delete actions in
	// a bulk response are swallowed rather than counted. It is taken
	// from NewESClient's suppressDeleteErrors argument.
	SuppressDeleteErrors bool
}

// BulkResult summarizes the outcome of one Bulk call for the status
// reporter.
type BulkResult struct {
	Indexed int
	Deleted int
	Errors  int
}

// Client is the C8 search sink contract: a bulk writer plus the two
// read paths the resolver needs to find root documents by back
// reference.
type Client interface {
	// Capability reports this client's version-dependent behavior.
	Capability() Capability

	// Bulk applies a batch of index/delete operations against index.
	Bulk(ctx context.Context, index string, ops []types.BulkOp) (*BulkResult, error)

	// SearchByMeta returns the _id of every document whose META section
	// for table has, for every column in keyValues, a value present in
	// that column's value list.
	SearchByMeta(ctx context.Context, index, table string, keyValues map[string][]string) ([]string, error)

	// ScanAllDocIDs returns every document id in index, used for a
	// root-table TRUNCATE.
	ScanAllDocIDs(ctx context.Context, index string) ([]string, error)

	// ScanDocIDsByMetaTable returns the _id of every document whose
	// META section references table at all, used for a non-root
	// TRUNCATE.
	ScanDocIDsByMetaTable(ctx context.Context, index, table string) ([]string, error)
}

// ESClient adapts Client to Elasticsearch (or a tagline-compatible
// alternative engine) via the official low-level client.
type ESClient struct {
	es   *elasticsearch.Client
	meta string
	cap  Capability
}

// NewESClient probes the cluster's /  info endpoint once to determine
// Capability, then returns a ready Client. metaField is the document
// field the executor stores the META section under; it defaults to
// "_meta".
func NewESClient(es *elasticsearch.Client, metaField string, suppressDeleteErrors bool) (*ESClient, error) {
	if metaField == "" {
		metaField = "_meta"
	}
	cap, err := detectCapability(es, suppressDeleteErrors)
	if err != nil {
		return nil, err
	}
	return &ESClient{es: es, meta: metaField, cap: cap}, nil
}

func detectCapability(es *elasticsearch.Client, suppressDeleteErrors bool) (Capability, error) {
	res, err := es.Info()
	if err != nil {
		return Capability{}, fmt.Errorf("querying search engine info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Capability{}, fmt.Errorf("search engine info returned status %s", res.Status())
	}

	var payload struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
		TagLine string `json:"tagline"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Capability{}, fmt.Errorf("decoding search engine info: %w", err)
	}

	alternative := !strings.Contains(strings.ToLower(payload.TagLine), "elasticsearch")
	var major int
	fmt.Sscanf(payload.Version.Number, "%d", &major)

	return Capability{
		SupportsTypeField:    major < 7 && !alternative,
		SuppressDeleteErrors: suppressDeleteErrors,
	}, nil
}

func (c *ESClient) Capability() Capability { return c.cap }

func (c *ESClient) Bulk(ctx context.Context, index string, ops []types.BulkOp) (*BulkResult, error) {
	if len(ops) == 0 {
		return &BulkResult{}, nil
	}

	var buf bytes.Buffer
	for _, op := range ops {
		meta := map[string]any{"_index": index, "_id": op.ID}
		if op.Routing != "" {
			meta["routing"] = op.Routing
		}
		if c.cap.SupportsTypeField && op.Type != "" {
			meta["_type"] = op.Type
		}

		var action map[string]any
		switch op.OpType {
		case types.BulkIndex:
			action = map[string]any{"index": meta}
		case types.BulkDelete:
			action = map[string]any{"delete": meta}
		default:
			return nil, fmt.Errorf("%w: unknown bulk op type %v", types.ErrSchemaValidation, op.OpType)
		}

		line, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("encoding bulk action line: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')

		if op.OpType == types.BulkIndex {
			source := op.Source
			if source == nil {
				source = map[string]any{}
			}
			sourceLine, err := json.Marshal(source)
			if err != nil {
				return nil, fmt.Errorf("encoding bulk source line: %w", err)
			}
			buf.Write(sourceLine)
			buf.WriteByte('\n')
		}
	}

	req := esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}
	if len(ops) > 0 && ops[0].Pipeline != "" {
		req.Pipeline = ops[0].Pipeline
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("performing bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("bulk request returned status %s", res.Status())
	}

	var parsed struct {
		Items []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding bulk response: %w", err)
	}

	result := &BulkResult{}
	for _, item := range parsed.Items {
		for action, outcome := range item {
			if outcome.Error != nil {
				if action == "delete" && c.cap.SuppressDeleteErrors {
					continue
				}
				result.Errors++
				continue
			}
			switch action {
			case "index", "create", "update":
				result.Indexed++
			case "delete":
				result.Deleted++
			}
		}
	}
	if result.Errors > 0 {
		metrics.BulkErrorsTotal.WithLabelValues(index).Add(float64(result.Errors))
	}
	return result, nil
}

func (c *ESClient) SearchByMeta(ctx context.Context, index, table string, keyValues map[string][]string) ([]string, error) {
	filters := make([]map[string]any, 0, len(keyValues))
	for col, values := range keyValues {
		field := fmt.Sprintf("%s.%s.%s", c.meta, table, col)
		filters = append(filters, map[string]any{"terms": map[string]any{field: values}})
	}
	query := map[string]any{
		"query":   map[string]any{"bool": map[string]any{"filter": filters}},
		"_source": false,
	}
	return c.runIDScan(ctx, index, query)
}

func (c *ESClient) ScanAllDocIDs(ctx context.Context, index string) ([]string, error) {
	query := map[string]any{
		"query":   map[string]any{"match_all": map[string]any{}},
		"_source": false,
	}
	return c.runIDScan(ctx, index, query)
}

func (c *ESClient) ScanDocIDsByMetaTable(ctx context.Context, index, table string) ([]string, error) {
	field := fmt.Sprintf("%s.%s", c.meta, table)
	query := map[string]any{
		"query":   map[string]any{"exists": map[string]any{"field": field}},
		"_source": false,
	}
	return c.runIDScan(ctx, index, query)
}

// idScanPageSize is the page size runIDScan requests per search_after
// round trip. It bounds memory per round trip, not the total number of
// ids returned.
const idScanPageSize = 1000

// runIDScan drains every hit matching query via search_after pagination
// sorted on _id, rather than a single bounded-size search. A plain
// size-bounded search would silently truncate at the page size on
// indices with more matches than that, which would leave TRUNCATE
// handling and meta back-reference lookups believing fewer root
// documents exist than actually do.
func (c *ESClient) runIDScan(ctx context.Context, index string, query map[string]any) ([]string, error) {
	base := make(map[string]any, len(query)+2)
	for k, v := range query {
		base[k] = v
	}
	base["size"] = idScanPageSize
	base["sort"] = []map[string]any{{"_id": "asc"}}

	var ids []string
	var searchAfter []any
	for {
		q := base
		if searchAfter != nil {
			q = make(map[string]any, len(base)+1)
			for k, v := range base {
				q[k] = v
			}
			q["search_after"] = searchAfter
		}

		hits, err := c.searchPage(ctx, index, q)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			ids = append(ids, hit.ID)
		}
		if len(hits) < idScanPageSize {
			return ids, nil
		}
		searchAfter = hits[len(hits)-1].Sort
	}
}

type idScanHit struct {
	ID   string `json:"_id"`
	Sort []any  `json:"sort"`
}

func (c *ESClient) searchPage(ctx context.Context, index string, query map[string]any) ([]idScanHit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encoding search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("performing search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search request returned status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []idScanHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return parsed.Hits.Hits, nil
}
