package pub

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"winsync/internal/types"
)

func (s *UnitTestSuite) TestTransportPublishesFrames() {
	cp := &capturePub{}
	t := NewTransport(cp, types.TargetConfig{Target: "arn:aws:sns:us-east-1:1:lists", CompressThreshold: 512})
	s.NoError(t.Send(context.Background(), sampleBatch(1)))
	s.NoError(t.Send(context.Background(), sampleBatch(300)))

	s.Require().Len(cp.sent, 2)
	s.Equal("arn:aws:sns:us-east-1:1:lists", cp.sent[0].target)
	s.Contains(string(cp.sent[0].payload), `"encoding":"json"`)
	s.Contains(string(cp.sent[1].payload), EncodingZstd)

	b, err := DecodeBatch(cp.sent[1].payload)
	s.NoError(err)
	s.Len(b.Ops[1].Items, 300)
}

func (s *UnitTestSuite) TestTransportFailure() {
	boom := errors.New("unreachable")
	t := NewTransport(&capturePub{err: boom}, types.TargetConfig{Target: "ch"})
	s.ErrorIs(t.Send(context.Background(), sampleBatch(1)), boom)
}

func (s *UnitTestSuite) TestLogPublisher() {
	s.NoError(NewLog(log.DebugLevel).PublishRaw(context.Background(), "dev", []byte(`{}`)))
}
