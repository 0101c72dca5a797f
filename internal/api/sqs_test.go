package api

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"

	"winsync/internal/ports"
	"winsync/internal/types"
)

func record(id, group, body string) events.SQSMessage {
	return events.SQSMessage{
		MessageId:  id,
		Body:       body,
		Attributes: map[string]string{messageGroupAttr: group},
	}
}

func failed(res events.SQSEventResponse) []string {
	var ids []string
	for _, f := range res.BatchItemFailures {
		ids = append(ids, f.ItemIdentifier)
	}
	return ids
}

func (s *UnitTestSuite) TestSQSAppliesEventsInOrder() {
	h := &SQSHandler{Lists: s.lists}
	res, err := h.HandleSQSEvent(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record("m1", "people", `{"type":"range","start":0,"length":10}`),
		record("m2", "people", `{"type":"ack","updateId":1}`),
		record("m3", "people", `{"type":"ack","updateId":1}`),
	}})
	s.Require().NoError(err)
	s.Empty(res.BatchItemFailures, "the list id falls back to the message group and stale acks are consumed")
	s.Equal(1, s.rec.count())
	s.Equal("idle", s.people.Status().State)
}

func (s *UnitTestSuite) TestSQSFailureHoldsBackItsGroup() {
	h := &SQSHandler{Lists: s.lists}
	res, err := h.HandleSQSEvent(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record("m1", "people", `{"type":"range","start":0,"length":10}`),
		record("m2", "people", `{"type":"ack"`),
		record("m3", "people", `{"type":"ack","updateId":1}`),
		record("m4", "ghosts", `{"type":"range","start":0,"length":10}`),
		record("m5", "other", `{"listId":"people","type":"range","start":5,"length":10}`),
	}})
	s.Require().NoError(err)
	s.Equal([]string{"m2", "m3", "m4"}, failed(res))

	st := s.people.Status()
	s.Equal("awaiting_ack", st.State, "the ack behind the broken message was not applied")
	s.Equal(int64(1), st.Awaiting)
	s.Equal(1, s.rec.count())
}

type publishCounter struct {
	mu      sync.Mutex
	targets []string
}

func (p *publishCounter) PublishRaw(_ context.Context, target string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, target)
	return nil
}

type providerSource struct {
	provider ports.DataProvider
}

func (p providerSource) ProviderFromEnv(context.Context, types.ListConfig) (ports.DataProvider, error) {
	return p.provider, nil
}

func (s *UnitTestSuite) TestSharedListsSkipUntargetedLists() {
	targeted := peopleConfig()
	targeted.Target = types.TargetConfig{Target: "people-topic"}
	private := peopleConfig()
	private.ID = "private"
	cfg := types.Config{Lists: []types.ListConfig{targeted, private}}

	pubs := &publishCounter{}
	ctx := context.Background()
	lists, err := SharedLists(ctx, cfg, ConfigOpener(cfg, providerSource{s.provider}), pubs)
	s.Require().NoError(err)
	defer lists.Close()
	s.Equal([]string{"people"}, lists.IDs())

	l, err := lists.Get("people")
	s.Require().NoError(err)
	res, err := Apply(ctx, l, types.ListEvent{Type: types.EventRange, Start: 0, Length: 5})
	s.Require().NoError(err)
	s.True(res.Committed)
	s.Equal([]string{"people-topic"}, pubs.targets)

	_, err = SharedLists(ctx, types.Config{Lists: []types.ListConfig{{ID: "ghost", Target: types.TargetConfig{Target: "t"}}}},
		ConfigOpener(cfg, providerSource{s.provider}), pubs)
	s.ErrorIs(err, types.ErrNotFound)
}
