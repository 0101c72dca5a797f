package annotate

import (
	"errors"
	"fmt"

	"winsync/internal/types"
)

func (s *UnitTestSuite) TestPipelineOrder() {
	p := NewPipeline()
	var trace []string
	p.Add(AnnotatorFunc(func(item types.Item, rep types.Representation) error {
		trace = append(trace, "first")
		rep["v"] = 1
		return nil
	}))
	p.Add(AnnotatorFunc(func(item types.Item, rep types.Representation) error {
		trace = append(trace, "second")
		rep["v"] = rep["v"].(int) + 1
		return nil
	}))
	rep, err := p.Annotate("x", "k1")
	s.NoError(err)
	s.Equal([]string{"first", "second"}, trace)
	s.Equal(2, rep["v"])
	s.Equal("k1", rep.Key())
}

func (s *UnitTestSuite) TestPipelineRemove() {
	p := NewPipeline()
	v0 := p.Version()
	r1 := p.Add(NewProperties().With("a", func(types.Item) (any, error) { return "a", nil }))
	p.Add(NewProperties().With("b", func(types.Item) (any, error) { return "b", nil }))
	s.Equal(2, p.Len())
	v2 := p.Version()
	s.NotEqual(v0, v2)

	r1.Remove()
	r1.Remove()
	s.Equal(1, p.Len())
	s.NotEqual(v2, p.Version())

	rep, err := p.Annotate(1, "k")
	s.NoError(err)
	s.NotContains(rep, "a")
	s.Equal("b", rep["b"])
}

func (s *UnitTestSuite) TestPipelineFailure() {
	p := NewPipeline()
	boom := errors.New("boom")
	p.Add(AnnotatorFunc(func(types.Item, types.Representation) error { return boom }))
	_, err := p.Annotate(1, "k")
	s.True(errors.Is(err, types.ErrAnnotatorFailure))
	s.True(errors.Is(err, boom))
}

func (s *UnitTestSuite) TestKeyCannotBeRebound() {
	p := NewPipeline()
	p.Add(AnnotatorFunc(func(_ types.Item, rep types.Representation) error {
		rep[types.KeyField] = "hijack"
		return nil
	}))
	rep, err := p.Annotate(1, "k")
	s.NoError(err)
	s.Equal("k", rep.Key())
}

func (s *UnitTestSuite) TestLabel() {
	p := NewPipeline()
	p.Add(NewProperties().With("label", Label))
	rep, err := p.Annotate(42, "k")
	s.NoError(err)
	s.Equal(fmt.Sprint(42), rep["label"])
}
