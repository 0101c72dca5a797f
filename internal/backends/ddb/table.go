package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	SList = "LIST"
	SItem = "ITEM"
)

func pkList(id string) string    { return fmt.Sprintf("%s#%s", SList, id) }
func skItem(pos int) string      { return fmt.Sprintf("%s#%012d", SItem, pos) }
func skItemPrefix() string       { return SItem + "#" }
func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }

func parseItemPos(sk string) (int, error) {
	var pos int
	_, err := fmt.Sscanf(sk, SItem+"#%d", &pos)
	if err != nil {
		return 0, err
	}
	return pos, nil
}

// createTableIfNotExists creates the single table. An existing table is not an error.
func createTableIfNotExists(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}
