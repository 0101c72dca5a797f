package engine

import (
	"context"
	"errors"

	"winsync/internal/annotate"
	"winsync/internal/types"
)

func labels(op types.Operation) []string {
	var out []string
	for _, rep := range op.Items {
		out = append(out, rep["label"].(string))
	}
	return out
}

func (s *UnitTestSuite) TestInitialWindow() {
	s.Equal(Idle, s.engine.State())
	s.NoError(s.engine.RequestRange(0, 50))
	s.True(s.engine.PendingFlush())
	s.Empty(s.transport.batches, "requesting a range does no I/O")

	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.True(ok)
	s.Equal(AwaitingAck, s.engine.State())

	s.Require().Len(s.transport.batches, 1)
	b := s.transport.batches[0]
	s.Equal("people", b.ListID)
	s.Equal(int64(1), b.UpdateID)
	s.Require().Len(b.Ops, 2)
	s.Equal(types.UpdateSize(1000), b.Ops[0])
	s.Equal(types.OpSet, b.Ops[1].Op)
	s.Equal(0, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 50)
	s.Equal("row 0", b.Ops[1].Items[0]["label"])
	s.Equal("row 49", b.Ops[1].Items[49]["label"])

	id, awaiting := s.engine.AwaitingUpdateID()
	s.True(awaiting)
	s.Equal(int64(1), id)

	s.True(s.engine.Acknowledge(1))
	s.Equal(Idle, s.engine.State())
	s.Equal(types.Range{Start: 0, Length: 50}, s.engine.ActiveRange())
	s.Equal(1000, s.engine.Size())
	s.Equal(50, s.engine.LiveKeys())
	s.False(s.engine.PendingFlush())
}

func (s *UnitTestSuite) TestEveryRowCarriesItsKey() {
	b := s.sync(0, 10)
	for i, rep := range b.Ops[1].Items {
		key, ok := s.engine.KeyFor(i)
		s.True(ok)
		s.Equal(key, rep.Key())
		item, ok := s.engine.ItemFor(key)
		s.True(ok)
		s.Equal(i, item)
	}
}

func (s *UnitTestSuite) TestRequestsCoalesceWhileAwaitingAck() {
	s.NoError(s.engine.RequestRange(0, 50))
	_, err := s.engine.Flush(context.Background())
	s.NoError(err)

	s.NoError(s.engine.RequestRange(10, 50))
	s.NoError(s.engine.RequestRange(100, 50))
	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.False(ok, "only one batch may be in flight")
	s.Len(s.transport.batches, 1)
	s.Equal(AwaitingAck, s.engine.State())

	s.True(s.engine.Acknowledge(1))
	ok, err = s.engine.Flush(context.Background())
	s.NoError(err)
	s.True(ok)
	s.Require().Len(s.transport.batches, 2)

	b := s.transport.batches[1]
	s.Equal(int64(2), b.UpdateID)
	s.Equal([]types.Operation{
		types.Clear(0, 50),
		b.Ops[1],
	}, b.Ops, "size is unchanged so it is not redeclared")
	s.Equal(100, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 50)

	s.True(s.engine.Acknowledge(2))
	s.Equal(types.Range{Start: 100, Length: 50}, s.engine.ActiveRange())
	s.Equal(50, s.engine.LiveKeys(), "keys of the abandoned window are released")
}

func (s *UnitTestSuite) TestScrollingSendsOnlyNewRows() {
	first := s.sync(0, 50)
	fetchesBefore := len(s.provider.fetches)

	b := s.sync(25, 50)
	s.Require().Len(b.Ops, 2)
	s.Equal(types.Clear(0, 25), b.Ops[0])
	s.Equal(types.OpSet, b.Ops[1].Op)
	s.Equal(50, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 25)

	s.Require().Len(s.provider.fetches, fetchesBefore+1)
	s.Equal(types.Query{Offset: 50, Limit: 25, Sort: []string{}}, normalize(s.provider.fetches[fetchesBefore]))

	keys := s.engine.ActiveKeys()
	s.Len(keys, 50)
	for i := 25; i < 50; i++ {
		s.Equal(first.Ops[1].Items[i].Key(), keys[i-25], "row %d keeps its key", i)
	}

	for i := 0; i < 25; i++ {
		_, ok := s.engine.KeyFor(i)
		s.False(ok, "row %d left the window and its key was released", i)
	}
	s.Equal(50, s.engine.LiveKeys())
}

func (s *UnitTestSuite) TestScrollingBackwards() {
	s.sync(100, 50)
	b := s.sync(80, 50)
	s.Require().Len(b.Ops, 2)
	s.Equal(types.Clear(130, 20), b.Ops[0])
	s.Equal(80, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 20)
}

func (s *UnitTestSuite) TestPipelineChangeResendsWholeWindow() {
	s.sync(0, 50)
	s.pipeline.Add(annotate.AnnotatorFunc(func(item types.Item, rep types.Representation) error {
		rep["badge"] = "new"
		return nil
	}))

	b := s.sync(0, 50)
	s.Require().Len(b.Ops, 1)
	s.Equal(types.OpSet, b.Ops[0].Op)
	s.Equal(0, b.Ops[0].Start)
	s.Len(b.Ops[0].Items, 50)
	for _, rep := range b.Ops[0].Items {
		s.Equal("new", rep["badge"])
	}
}

func (s *UnitTestSuite) TestDuplicateAcknowledgmentIsIgnored() {
	s.sync(0, 50)
	keys := s.engine.ActiveKeys()

	s.False(s.engine.Acknowledge(1))
	s.Equal(Idle, s.engine.State())
	s.Equal(keys, s.engine.ActiveKeys())
	s.Equal(1000, s.engine.Size())
	s.Equal(50, s.engine.LiveKeys())
}

func (s *UnitTestSuite) TestWrongAcknowledgmentKeepsWaiting() {
	s.NoError(s.engine.RequestRange(0, 50))
	_, err := s.engine.Flush(context.Background())
	s.NoError(err)

	s.False(s.engine.Acknowledge(7))
	s.False(s.engine.Acknowledge(0))
	s.Equal(AwaitingAck, s.engine.State())
	s.Equal(types.Range{}, s.engine.ActiveRange())

	s.True(s.engine.Acknowledge(1))
}

func (s *UnitTestSuite) TestAcknowledgmentWhileIdle() {
	s.False(s.engine.Acknowledge(1))
	s.Equal(Idle, s.engine.State())
}

func (s *UnitTestSuite) TestNothingToSend() {
	s.sync(0, 50)
	s.NoError(s.engine.RequestRange(0, 50))
	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.False(ok)
	s.Len(s.transport.batches, 1)
	s.Equal(Idle, s.engine.State())
	s.False(s.engine.PendingFlush())
}

func (s *UnitTestSuite) TestFlushWithoutRequest() {
	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.False(ok)
	s.Zero(s.provider.sizeCalls)
}

func (s *UnitTestSuite) TestInvalidRange() {
	err := s.engine.RequestRange(-1, 10)
	s.True(errors.Is(err, types.ErrInvalidRange))
	s.False(s.engine.PendingFlush())
}

func (s *UnitTestSuite) TestRangeBeyondDataset() {
	s.provider = newSliceProvider(30)
	s.engine.source.SetProvider(s.provider)

	b := s.sync(20, 50)
	s.Require().Len(b.Ops, 2)
	s.Equal(types.UpdateSize(30), b.Ops[0])
	s.Equal(20, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 10)
	s.Equal(types.Range{Start: 20, Length: 10}, s.engine.ActiveRange())
}

func (s *UnitTestSuite) TestShortFetchClampsSize() {
	s.provider.shortBy = 980

	b := s.sync(0, 50)
	s.Require().Len(b.Ops, 2)
	s.Equal(types.UpdateSize(20), b.Ops[0])
	s.Equal(0, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 20)
	s.Equal(20, s.engine.Size())
}

func (s *UnitTestSuite) TestDatasetShrinks() {
	s.sync(0, 50)
	s.provider.items = s.provider.items[:40]

	b := s.sync(0, 50)
	s.Equal([]types.Operation{types.UpdateSize(40)}, b.Ops)
	s.Equal(types.Range{Start: 0, Length: 40}, s.engine.ActiveRange())
	s.Equal(40, s.engine.LiveKeys())
	_, ok := s.engine.KeyFor(45)
	s.False(ok)
}

func (s *UnitTestSuite) TestRefreshItem() {
	first := s.sync(0, 50)
	s.provider.items[5] = 5

	s.True(s.engine.RefreshItem(5))
	s.False(s.engine.RefreshItem(500), "untracked items are ignored")

	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.True(ok)
	b := s.transport.last()
	s.Require().Len(b.Ops, 1)
	s.Equal(types.OpSet, b.Ops[0].Op)
	s.Equal(5, b.Ops[0].Start)
	s.Require().Len(b.Ops[0].Items, 1)
	s.Equal(first.Ops[1].Items[5].Key(), b.Ops[0].Items[0].Key())
	s.Equal([]string{"row 5"}, labels(b.Ops[0]))
}

func (s *UnitTestSuite) TestResetWhileAwaitingAck() {
	s.NoError(s.engine.RequestRange(0, 50))
	_, err := s.engine.Flush(context.Background())
	s.NoError(err)

	s.engine.Reset()
	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.False(ok, "reset does not bypass fencing")

	s.True(s.engine.Acknowledge(1))
	ok, err = s.engine.Flush(context.Background())
	s.NoError(err)
	s.True(ok)
	b := s.transport.last()
	s.Equal(int64(2), b.UpdateID)
	s.Require().Len(b.Ops, 1)
	s.Equal(0, b.Ops[0].Start)
	s.Len(b.Ops[0].Items, 50)
}

func (s *UnitTestSuite) TestProviderFailureRollsBack() {
	s.provider.fetchErr = errBoom
	s.NoError(s.engine.RequestRange(0, 50))

	ok, err := s.engine.Flush(context.Background())
	s.False(ok)
	s.True(errors.Is(err, types.ErrProviderFailure))
	s.True(errors.Is(err, errBoom))
	s.Equal(Idle, s.engine.State())
	s.True(s.engine.PendingFlush())
	s.Empty(s.transport.batches)
	s.Zero(s.engine.LiveKeys())

	s.provider.fetchErr = nil
	ok, err = s.engine.Flush(context.Background())
	s.NoError(err)
	s.True(ok)
	s.Equal(int64(1), s.transport.last().UpdateID, "a failed cycle does not consume an update id")
}

func (s *UnitTestSuite) TestSizeFailure() {
	s.provider.sizeErr = errBoom
	s.NoError(s.engine.RequestRange(0, 50))
	_, err := s.engine.Flush(context.Background())
	s.True(errors.Is(err, types.ErrProviderFailure))
	s.Equal(Idle, s.engine.State())
	s.Empty(s.provider.fetches)
}

func (s *UnitTestSuite) TestAnnotatorFailureRollsBack() {
	s.sync(0, 10)
	s.pipeline.Add(annotate.AnnotatorFunc(func(item types.Item, rep types.Representation) error {
		if item == 15 {
			return errBoom
		}
		return nil
	}))
	s.NoError(s.engine.RequestRange(0, 20))

	_, err := s.engine.Flush(context.Background())
	s.True(errors.Is(err, types.ErrAnnotatorFailure))
	s.Equal(Idle, s.engine.State())
	s.Len(s.transport.batches, 1)
	s.Equal(10, s.engine.LiveKeys(), "keys created by the failed cycle are released")
	s.Equal(types.Range{Start: 0, Length: 10}, s.engine.ActiveRange())
}

func (s *UnitTestSuite) TestTransportFailure() {
	s.sync(0, 50)
	s.transport.err = errBoom
	s.NoError(s.engine.RequestRange(25, 50))

	_, err := s.engine.Flush(context.Background())
	s.True(errors.Is(err, types.ErrTransportFailure))
	s.Equal(Idle, s.engine.State())
	s.True(s.engine.PendingFlush())
	_, awaiting := s.engine.AwaitingUpdateID()
	s.False(awaiting)
	s.False(s.engine.Acknowledge(2), "the failed update id is burnt")
	s.Equal(50, s.engine.LiveKeys())

	s.transport.err = nil
	ok, err := s.engine.Flush(context.Background())
	s.NoError(err)
	s.True(ok)
	b := s.transport.last()
	s.Equal(int64(3), b.UpdateID)
	s.Require().Len(b.Ops, 2)
	s.Equal(types.Clear(0, 25), b.Ops[0])
	s.Equal(25, b.Ops[1].Start)
	s.Len(b.Ops[1].Items, 50, "a lost batch forces a full resend")
}

func (s *UnitTestSuite) TestDestroyOnRelease() {
	var destroyed []string
	s.pipeline.Add(destroyRecorder{fn: func(key string) { destroyed = append(destroyed, key) }})
	first := s.sync(0, 10)
	s.sync(5, 10)
	s.Len(destroyed, 5)
	for i := 0; i < 5; i++ {
		s.Equal(first.Ops[1].Items[i].Key(), destroyed[i])
	}
}

type destroyRecorder struct {
	fn func(key string)
}

func (destroyRecorder) Annotate(types.Item, types.Representation) error { return nil }

func (d destroyRecorder) Destroy(key string, _ types.Item) { d.fn(key) }

func (s *UnitTestSuite) TestNewRequiresCollaborators() {
	_, err := New(Options{ListID: "x"})
	s.Error(err)
}

func (s *UnitTestSuite) TestStateString() {
	s.Equal("idle", Idle.String())
	s.Equal("awaiting_ack", AwaitingAck.String())
	s.Equal("unknown", State(42).String())
}

func normalize(q types.Query) types.Query {
	if q.Sort == nil {
		q.Sort = []string{}
	}
	return q
}
