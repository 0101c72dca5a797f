package api

import (
	"context"

	"winsync/internal/types"
)

func (s *UnitTestSuite) TestApplyRangeThenAck() {
	ctx := context.Background()
	res, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventRange, Start: 0, Length: 20})
	s.Require().NoError(err)
	s.True(res.Committed)
	s.Equal(int64(1), res.Awaiting)
	s.Equal("awaiting_ack", res.Status)

	b := s.rec.last()
	s.Require().Len(b.Ops, 2)
	s.Equal(types.UpdateSize(100), b.Ops[0])
	s.Equal(types.OpSet, b.Ops[1].Op)
	s.Equal(20, b.Ops[1].Length)

	res, err = Apply(ctx, s.people, types.ListEvent{Type: types.EventAck, UpdateID: 1})
	s.Require().NoError(err)
	s.False(res.Stale)
	s.False(res.Committed)
	s.Equal("idle", res.Status)
}

func (s *UnitTestSuite) TestApplyQueuedRangeFlushesOnAck() {
	ctx := context.Background()
	_, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventRange, Start: 0, Length: 20})
	s.Require().NoError(err)
	res, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventRange, Start: 10, Length: 20})
	s.Require().NoError(err)
	s.False(res.Committed)
	s.Equal(1, s.rec.count())

	res, err = Apply(ctx, s.people, types.ListEvent{Type: types.EventAck, UpdateID: 1})
	s.Require().NoError(err)
	s.True(res.Committed)
	s.Equal(int64(2), res.Awaiting)
	s.Equal(2, s.rec.count())
	s.Equal([]types.Operation{types.Clear(0, 10), s.rec.last().Ops[1]}, s.rec.last().Ops)
	s.Equal(20, s.rec.last().Ops[1].Start)
}

func (s *UnitTestSuite) TestApplyStaleAck() {
	ctx := context.Background()
	_, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventRange, Start: 0, Length: 5})
	s.Require().NoError(err)
	res, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventAck, UpdateID: 7})
	s.Require().NoError(err)
	s.True(res.Stale)
	s.Equal(int64(1), res.Awaiting)
}

func (s *UnitTestSuite) TestApplyInvalidEvents() {
	ctx := context.Background()
	_, err := Apply(ctx, s.people, types.ListEvent{Type: "scroll"})
	s.ErrorIs(err, types.ErrInvalidEvent)
	_, err = Apply(ctx, s.people, types.ListEvent{Type: types.EventRange, Start: -1, Length: 5})
	s.ErrorIs(err, types.ErrInvalidRange)
	_, err = Apply(ctx, s.people, types.ListEvent{Type: types.EventAck})
	s.ErrorIs(err, types.ErrInvalidEvent)
	s.Equal(0, s.rec.count())
}

func (s *UnitTestSuite) TestApplyRefresh() {
	ctx := context.Background()
	_, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventRange, Start: 0, Length: 10})
	s.Require().NoError(err)
	_, err = Apply(ctx, s.people, types.ListEvent{Type: types.EventAck, UpdateID: 1})
	s.Require().NoError(err)

	res, err := Apply(ctx, s.people, types.ListEvent{Type: types.EventRefresh, Item: person(3)})
	s.Require().NoError(err)
	s.True(res.Committed)
	b := s.rec.last()
	s.Require().Len(b.Ops, 1)
	s.Equal(3, b.Ops[0].Start)
	s.Equal(1, b.Ops[0].Length)
}
