package ddb

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"

	"winsync/internal/ports"
	"winsync/internal/types"
)

// Configs share the items table: one row per list under PK=CONFIG, SK=LIST#<id>.
const pkConfig = "CONFIG"

type ConfigStore struct {
	table string
	cli   *dynamodb.Client
}

type configRow struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	Config string `dynamodbav:"config"`
}

func NewConfigStore(ctx context.Context, table string, cli *dynamodb.Client) (*ConfigStore, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	return &ConfigStore{table: table, cli: cli}, nil
}

func (s *ConfigStore) GetListConfig(ctx context.Context, id string) (types.ListConfig, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkConfig},
			"SK": &ddbTypes.AttributeValueMemberS{Value: pkList(id)},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.ListConfig{}, err
	}
	if out.Item == nil {
		return types.ListConfig{}, types.Err(types.ErrNotFound, nil, "list config %q", id)
	}
	var row configRow
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return types.ListConfig{}, err
	}
	var cfg types.ListConfig
	if err := json.Unmarshal([]byte(row.Config), &cfg); err != nil {
		return types.ListConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) ListConfigIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var startKey map[string]ddbTypes.AttributeValue
	for {
		out, err := s.cli.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.table,
			KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":pk": &ddbTypes.AttributeValueMemberS{Value: pkConfig},
				":sk": &ddbTypes.AttributeValueMemberS{Value: SList + "#"},
			},
			ProjectionExpression: awsString("SK"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			var sk struct {
				SK string `dynamodbav:"SK"`
			}
			if err := attributevalue.UnmarshalMap(item, &sk); err != nil {
				return nil, err
			}
			if id := strings.TrimPrefix(sk.SK, SList+"#"); id != "" {
				ids = append(ids, id)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return ids, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *ConfigStore) PutListConfig(ctx context.Context, cfg types.ListConfig) error {
	if err := cfg.Validate(); err != nil {
		return types.Err(types.ErrInvalidConfig, err, "list %s", cfg.ID)
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(configRow{
		PK:     pkConfig,
		SK:     pkList(cfg.ID),
		Config: string(body),
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	return err
}

func (s *ConfigStore) DeleteListConfig(ctx context.Context, id string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkConfig},
			"SK": &ddbTypes.AttributeValueMemberS{Value: pkList(id)},
		},
	})
	return err
}

var _ ports.ConfigStore = (*ConfigStore)(nil)
