package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"

	"winsync/internal/backends/items"
	"winsync/internal/types"
)

// batchWriteLimit is the DynamoDB cap on requests per BatchWriteItem call.
const batchWriteLimit = 25

// Provider serves a list from the single table: one row per position under PK=LIST#<id>,
// with zero-padded positions as sort keys so range reads follow row order.
type Provider struct {
	table   string
	cli     *dynamodb.Client
	listID  string
	idField string
}

type itemRow struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	Pos    int    `dynamodbav:"pos"`
	ItemID string `dynamodbav:"item_id"`
	Body   string `dynamodbav:"body"`
}

func NewProvider(ctx context.Context, table string, cli *dynamodb.Client, listID, idField string) (*Provider, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	if idField == "" {
		idField = types.DefaultIDField
	}
	return &Provider{table: table, cli: cli, listID: listID, idField: idField}, nil
}

// Size counts the list's rows. COUNT queries are paginated like any other query.
func (p *Provider) Size(ctx context.Context, q types.Query) (int, error) {
	if err := unsupported(q); err != nil {
		return 0, err
	}
	total := 0
	var startKey map[string]ddbTypes.AttributeValue
	for {
		out, err := p.cli.Query(ctx, &dynamodb.QueryInput{
			TableName:              &p.table,
			KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":pk": &ddbTypes.AttributeValueMemberS{Value: pkList(p.listID)},
				":sk": &ddbTypes.AttributeValueMemberS{Value: skItemPrefix()},
			},
			Select:            ddbTypes.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (p *Provider) Fetch(ctx context.Context, q types.Query) ([]types.Item, error) {
	if err := unsupported(q); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, nil
	}
	res := make([]types.Item, 0, q.Limit)
	var startKey map[string]ddbTypes.AttributeValue
	for len(res) < q.Limit {
		out, err := p.cli.Query(ctx, &dynamodb.QueryInput{
			TableName:              &p.table,
			KeyConditionExpression: awsString("PK = :pk AND SK BETWEEN :from AND :to"),
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":pk":   &ddbTypes.AttributeValueMemberS{Value: pkList(p.listID)},
				":from": &ddbTypes.AttributeValueMemberS{Value: skItem(q.Offset)},
				":to":   &ddbTypes.AttributeValueMemberS{Value: skItem(q.Offset + q.Limit - 1)},
			},
			ConsistentRead:    awsBool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, raw := range out.Items {
			var row itemRow
			if err := attributevalue.UnmarshalMap(raw, &row); err != nil {
				return nil, err
			}
			// a gap ends the run; the caller sees a short read
			if pos, err := parseItemPos(row.SK); err != nil || pos != q.Offset+len(res) {
				return res, nil
			}
			item, err := items.Decode([]byte(row.Body))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", row.SK, err)
			}
			res = append(res, item)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return res, nil
}

func (p *Provider) ItemID(item types.Item) string {
	return items.ID(item, p.idField)
}

// PutItems writes rows at positions offset, offset+1, ... overwriting what was there.
func (p *Provider) PutItems(ctx context.Context, offset int, rows []types.Item) error {
	for chunkStart := 0; chunkStart < len(rows); chunkStart += batchWriteLimit {
		chunk := rows[chunkStart:min(chunkStart+batchWriteLimit, len(rows))]
		reqs := make([]ddbTypes.WriteRequest, 0, len(chunk))
		for i, row := range chunk {
			body, err := items.Encode(row)
			if err != nil {
				return err
			}
			pos := offset + chunkStart + i
			av, err := attributevalue.MarshalMap(itemRow{
				PK:     pkList(p.listID),
				SK:     skItem(pos),
				Pos:    pos,
				ItemID: p.ItemID(row),
				Body:   string(body),
			})
			if err != nil {
				return err
			}
			reqs = append(reqs, ddbTypes.WriteRequest{PutRequest: &ddbTypes.PutRequest{Item: av}})
		}
		if err := p.batchWrite(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

// batchWrite retries unprocessed requests with a short linear backoff.
func (p *Provider) batchWrite(ctx context.Context, reqs []ddbTypes.WriteRequest) error {
	pending := map[string][]ddbTypes.WriteRequest{p.table: reqs}
	for attempt := 1; len(pending[p.table]) > 0; attempt++ {
		out, err := p.cli.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
		if len(pending[p.table]) == 0 {
			return nil
		}
		log.WithFields(log.Fields{
			"list":        p.listID,
			"unprocessed": len(pending[p.table]),
			"attempt":     attempt,
		}).Warn("retrying unprocessed writes")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return nil
}

// CheckQuery rejects any filter or sort.
func CheckQuery(q types.QueryConfig) error {
	return unsupported(types.Query{Filter: q.Filter, Sort: q.Sort})
}

func unsupported(q types.Query) error {
	if q.Filter != "" || len(q.Sort) > 0 {
		return types.Err(types.ErrInvalidBackend, nil, "ddb provider cannot filter or sort")
	}
	return nil
}
