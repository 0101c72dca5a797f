package types

import "github.com/goccy/go-json"

func (s *UnitTestSuite) TestOperationWireForm() {
	b, err := json.Marshal(UpdateSize(1000))
	s.NoError(err)
	s.JSONEq(`["updateSize",1000]`, string(b))

	b, err = json.Marshal(Clear(5, 10))
	s.NoError(err)
	s.JSONEq(`["clear",5,10]`, string(b))

	b, err = json.Marshal(Set(2, []Representation{{KeyField: "1", "label": "a"}}))
	s.NoError(err)
	s.JSONEq(`["set",2,[{"key":"1","label":"a"}]]`, string(b))

	b, err = json.Marshal(Set(2, nil))
	s.NoError(err)
	s.JSONEq(`["set",2,[]]`, string(b))
}

func (s *UnitTestSuite) TestBatchDecode() {
	in := `{"listId":"l","updateId":3,"ops":[["updateSize",7],["clear",0,2],["set",0,[{"key":"9"}]]]}`
	var b Batch
	s.NoError(json.Unmarshal([]byte(in), &b))
	s.Equal(int64(3), b.UpdateID)
	s.Len(b.Ops, 3)
	s.Equal(UpdateSize(7), b.Ops[0])
	s.Equal(Clear(0, 2), b.Ops[1])
	s.Equal(OpSet, b.Ops[2].Op)
	s.Equal("9", b.Ops[2].Items[0].Key())

	var op Operation
	s.Error(json.Unmarshal([]byte(`["bogus",1]`), &op))
	s.Error(json.Unmarshal([]byte(`["clear",1]`), &op))
}
