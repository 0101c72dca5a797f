package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"winsync/internal/backends/items"
	"winsync/internal/types"
)

const (
	itemsKeyNameTemplate = "_winsync_items_%s"
)

// Provider serves a list from a Redis list of JSON documents, one per row in row order.
// Paging maps onto LRANGE, so queries cannot filter or reorder.
type Provider struct {
	cli     *redis.Client
	listID  string
	idField string
}

func NewProvider(cli *redis.Client, listID, idField string) *Provider {
	if idField == "" {
		idField = types.DefaultIDField
	}
	return &Provider{cli: cli, listID: listID, idField: idField}
}

func (p *Provider) Size(ctx context.Context, q types.Query) (int, error) {
	if err := unsupported(q); err != nil {
		return 0, err
	}
	out := p.cli.LLen(ctx, getItemsKey(p.listID))
	if out.Err() != nil {
		return 0, out.Err()
	}
	return int(out.Val()), nil
}

func (p *Provider) Fetch(ctx context.Context, q types.Query) ([]types.Item, error) {
	if err := unsupported(q); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, nil
	}
	start := int64(q.Offset)
	stop := start + int64(q.Limit) - 1
	out := p.cli.LRange(ctx, getItemsKey(p.listID), start, stop)
	if out.Err() != nil {
		return nil, out.Err()
	}
	res := make([]types.Item, 0, len(out.Val()))
	for i, raw := range out.Val() {
		item, err := items.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", q.Offset+i, err)
		}
		res = append(res, item)
	}
	return res, nil
}

func (p *Provider) ItemID(item types.Item) string {
	return items.ID(item, p.idField)
}

// Append adds rows at the end of the list.
func (p *Provider) Append(ctx context.Context, rows ...types.Item) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		b, err := items.Encode(row)
		if err != nil {
			return err
		}
		values = append(values, string(b))
	}
	return p.cli.RPush(ctx, getItemsKey(p.listID), values...).Err()
}

// Set overwrites the row at pos.
func (p *Provider) Set(ctx context.Context, pos int, row types.Item) error {
	b, err := items.Encode(row)
	if err != nil {
		return err
	}
	return p.cli.LSet(ctx, getItemsKey(p.listID), int64(pos), string(b)).Err()
}

func (p *Provider) Clear(ctx context.Context) error {
	out := p.cli.Del(ctx, getItemsKey(p.listID))
	if out.Err() != nil {
		log.WithError(out.Err()).WithField("list", p.listID).Error("failed to clear items")
	}
	return out.Err()
}

// CheckQuery rejects any filter or sort.
func CheckQuery(q types.QueryConfig) error {
	return unsupported(types.Query{Filter: q.Filter, Sort: q.Sort})
}

func unsupported(q types.Query) error {
	if q.Filter != "" || len(q.Sort) > 0 {
		return types.Err(types.ErrInvalidBackend, nil, "redis provider cannot filter or sort")
	}
	return nil
}

func getItemsKey(listID string) string {
	return fmt.Sprintf(itemsKeyNameTemplate, listID)
}
