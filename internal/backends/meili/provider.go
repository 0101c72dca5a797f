package meili

import (
	"context"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"winsync/internal/backends/items"
	"winsync/internal/types"
)

const (
	DefaultHost = "http://localhost:7700"
	// DefaultMaxTotalHits replaces the server default of 1000, which caps both hit counts and
	// how deep offset paging can reach.
	DefaultMaxTotalHits = 1_000_000
)

// Searcher is the part of a Meilisearch index the provider reads through.
type Searcher interface {
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// Provider serves a list from a search index with a placeholder search, so every document
// matches unless the query filters. Filters use Meilisearch filter syntax; sort entries are
// attribute names, "-" prefixed for descending. The size is the exhaustive hit count of a
// page-mode search, bounded by the index's maxTotalHits (see EnsureMaxTotalHits).
type Provider struct {
	index   Searcher
	idField string
	stable  bool
}

func NewProvider(index Searcher, idField string, stable bool) *Provider {
	if idField == "" {
		idField = types.DefaultIDField
	}
	return &Provider{index: index, idField: idField, stable: stable}
}

// Connect opens the named index.
func Connect(host, apiKey, index string) (*meilisearch.Client, *meilisearch.Index) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: strings.TrimSpace(apiKey),
	})
	return client, client.Index(index)
}

func (p *Provider) Size(_ context.Context, q types.Query) (int, error) {
	req := p.request(q, 0, 0)
	req.Page = 1
	req.HitsPerPage = 1
	res, err := p.index.Search("", req)
	if err != nil {
		return 0, err
	}
	return int(res.TotalHits), nil
}

func (p *Provider) Fetch(_ context.Context, q types.Query) ([]types.Item, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	res, err := p.index.Search("", p.request(q, q.Offset, q.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]types.Item, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit)
	}
	return out, nil
}

func (p *Provider) ItemID(item types.Item) string {
	return items.ID(item, p.idField)
}

// Stable reports whether the index is treated as read-only while lists are open.
func (p *Provider) Stable() bool { return p.stable }

func (p *Provider) request(q types.Query, offset, limit int) *meilisearch.SearchRequest {
	req := &meilisearch.SearchRequest{
		Offset: int64(offset),
		Limit:  int64(limit),
		Sort:   sortRules(q.Sort),
	}
	if q.Filter != "" {
		req.Filter = q.Filter
	}
	return req
}

func sortRules(sort []string) []string {
	if len(sort) == 0 {
		return nil
	}
	out := make([]string, 0, len(sort))
	for _, s := range sort {
		if strings.HasPrefix(s, "-") {
			out = append(out, s[1:]+":desc")
			continue
		}
		out = append(out, s+":asc")
	}
	return out
}

// EnsureMaxTotalHits raises the index's pagination limit to at least maxTotalHits and waits
// for the settings task. Lists longer than the limit would be cut short.
func EnsureMaxTotalHits(ctx context.Context, client *meilisearch.Client, index *meilisearch.Index, maxTotalHits int64) error {
	if maxTotalHits <= 0 {
		maxTotalHits = DefaultMaxTotalHits
	}
	current, err := index.GetPagination()
	if err == nil && current != nil && current.MaxTotalHits >= maxTotalHits {
		return nil
	}
	task, err := index.UpdatePagination(&meilisearch.Pagination{MaxTotalHits: maxTotalHits})
	if err != nil {
		return err
	}
	_, err = client.WaitForTask(task.TaskUID, meilisearch.WaitParams{Context: ctx})
	return err
}

// AddItems indexes rows and waits for the indexing task.
func AddItems(ctx context.Context, client *meilisearch.Client, index *meilisearch.Index, idField string, rows []types.Item) error {
	if len(rows) == 0 {
		return nil
	}
	task, err := index.AddDocuments(rows, idField)
	if err != nil {
		return err
	}
	if task == nil || task.TaskUID == 0 {
		return nil
	}
	_, err = client.WaitForTask(task.TaskUID, meilisearch.WaitParams{Context: ctx})
	return err
}
