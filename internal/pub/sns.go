package pub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// fifoGroup keeps every batch in one FIFO message group so topics deliver them in order.
const fifoGroup = "winsync"

type snsPub struct{ cli *sns.Client }

func NewSNS(c *sns.Client) *snsPub { return &snsPub{cli: c} }

func (s *snsPub) PublishRaw(ctx context.Context, arn string, payload []byte) error {
	in := &sns.PublishInput{
		TopicArn: &arn,
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		},
	}
	if strings.HasSuffix(arn, ".fifo") {
		sum := sha256.Sum256(payload)
		in.MessageGroupId = aws.String(fifoGroup)
		in.MessageDeduplicationId = aws.String(hex.EncodeToString(sum[:]))
	}
	_, err := s.cli.Publish(ctx, in)
	return err
}
