package keys

func (s *UnitTestSuite) TestAssignIsStable() {
	r := NewRegistry(nil)
	k1, created := r.Assign("a", "item-a")
	s.True(created)
	k2, created := r.Assign("a", "item-a-v2")
	s.False(created)
	s.Equal(k1, k2)

	item, ok := r.Get(k1)
	s.True(ok)
	s.Equal("item-a-v2", item)

	kb, _ := r.Assign("b", "item-b")
	s.NotEqual(k1, kb)
	s.Equal(2, r.Len())
}

func (s *UnitTestSuite) TestReleaseNeverReusesKeys() {
	r := NewRegistry(&CounterGenerator{})
	k1, _ := r.Assign("a", 1)
	item, ok := r.Release(k1)
	s.True(ok)
	s.Equal(1, item)
	s.False(r.Has(k1))

	_, ok = r.Release(k1)
	s.False(ok, "double release is a no-op")

	k2, created := r.Assign("a", 1)
	s.True(created)
	s.NotEqual(k1, k2)
	s.Equal(1, r.Len())
}

func (s *UnitTestSuite) TestULIDGenerator() {
	r := NewRegistry(GeneratorFor("ulid"))
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		k, created := r.Assign(string(rune('a'+i%26))+string(rune('0'+i/26)), i)
		s.True(created)
		s.Len(k, 26)
		seen[k] = struct{}{}
	}
	s.Len(seen, 100)
	s.Len(r.Keys(), 100)
}
