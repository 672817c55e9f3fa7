package state

import "testing"

func TestSetGet(t *testing.T) {
	s := New()
	if err := s.Set("x", "1"); err != nil {
		t.Fatal(err)
	}
	if got := s.Get("x"); got != "1" {
		t.Errorf("Get = %q", got)
	}
	if s.Get("missing") != "" {
		t.Error("unset variable should be empty")
	}
}

func TestScopeLookupWalksOutward(t *testing.T) {
	s := New()
	_ = s.Set("x", "global")
	s.PushScope()
	defer s.PopScope()
	if got := s.Get("x"); got != "global" {
		t.Errorf("inner scope should see outer variable, got %q", got)
	}
}

func TestAssignmentWithoutLocalUpdatesOriginalScope(t *testing.T) {
	s := New()
	_ = s.Set("x", "old")
	s.PushScope()
	_ = s.Set("x", "new")
	s.PopScope()
	if got := s.Get("x"); got != "new" {
		t.Errorf("assignment in function should update the original scope, got %q", got)
	}
}

func TestLocalShadowsOuter(t *testing.T) {
	s := New()
	_ = s.Set("x", "outer")
	s.PushScope()
	_ = s.SetLocal("x", "inner")
	if got := s.Get("x"); got != "inner" {
		t.Errorf("got %q", got)
	}
	s.PopScope()
	if got := s.Get("x"); got != "outer" {
		t.Errorf("pop should restore outer value, got %q", got)
	}
}

func TestUnsetTombstone(t *testing.T) {
	s := New()
	_ = s.Set("x", "outer")
	s.PushScope()
	_ = s.Unset("x")
	if s.IsSet("x") {
		t.Error("tombstone should mask the outer variable")
	}
	s.PopScope()
	if !s.IsSet("x") || s.Get("x") != "outer" {
		t.Error("outer variable should survive the masked unset")
	}
}

func TestReadonly(t *testing.T) {
	s := New()
	_ = s.Set("x", "1")
	s.MarkAttr("x", AttrReadonly)
	if err := s.Set("x", "2"); err == nil {
		t.Fatal("assignment to readonly must fail")
	}
	if err := s.Unset("x"); err == nil {
		t.Fatal("unset of readonly must fail")
	}
	if got := s.Get("x"); got != "1" {
		t.Errorf("value changed to %q", got)
	}
}

func TestCloneIsolation(t *testing.T) {
	s := New()
	_ = s.Set("x", "1")
	s.Positional = []string{"a", "b"}
	s.Traps["EXIT"] = "echo bye"

	c := s.Clone()
	_ = c.Set("x", "2")
	c.Positional[0] = "z"
	c.Traps["EXIT"] = "changed"
	_ = c.Set("newvar", "only-in-clone")

	if s.Get("x") != "1" {
		t.Error("clone write leaked into parent")
	}
	if s.Positional[0] != "a" {
		t.Error("positional parameters shared with clone")
	}
	if s.Traps["EXIT"] != "echo bye" {
		t.Error("trap table shared with clone")
	}
	if s.IsSet("newvar") {
		t.Error("new clone variable visible in parent")
	}
	if !c.InForkedChild {
		t.Error("clone should be marked as forked child")
	}
}

func TestIndexedArray(t *testing.T) {
	v := &Variable{Name: "arr", Attrs: AttrIndexedArray, Indexed: map[int]string{
		0: "a", 2: "c", 5: "f",
	}}
	vals := v.ArrayValues()
	want := []string{"a", "c", "f"}
	if len(vals) != len(want) {
		t.Fatalf("len = %d", len(vals))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("vals[%d] = %q, want %q", i, vals[i], want[i])
		}
	}
	if v.Scalar() != "a" {
		t.Errorf("Scalar = %q, want element 0", v.Scalar())
	}
}

func TestAssocArrayPreservesInsertionOrder(t *testing.T) {
	v := &Variable{Name: "m", Attrs: AttrAssocArray}
	v.SetAssoc("z", "1")
	v.SetAssoc("a", "2")
	v.SetAssoc("z", "updated")
	vals := v.ArrayValues()
	if len(vals) != 2 || vals[0] != "updated" || vals[1] != "2" {
		t.Errorf("vals = %v, want insertion order", vals)
	}
}

func TestIntegerAttribute(t *testing.T) {
	s := New()
	s.MarkAttr("n", AttrInteger)
	_ = s.Set("n", "junk")
	if got := s.Get("n"); got != "0" {
		t.Errorf("non-numeric assignment to integer var = %q, want 0", got)
	}
	_ = s.Set("n", " 42 ")
	if got := s.Get("n"); got != "42" {
		t.Errorf("got %q", got)
	}
}

func TestCaseAttributes(t *testing.T) {
	s := New()
	s.MarkAttr("lo", AttrLowercase)
	_ = s.Set("lo", "MiXeD")
	if got := s.Get("lo"); got != "mixed" {
		t.Errorf("got %q", got)
	}
	s.MarkAttr("up", AttrUppercase)
	_ = s.Set("up", "MiXeD")
	if got := s.Get("up"); got != "MIXED" {
		t.Errorf("got %q", got)
	}
}

func TestNameref(t *testing.T) {
	s := New()
	_ = s.Set("target", "value")
	_ = s.Set("ref", "target")
	s.MarkAttr("ref", AttrNameref)
	if got := s.Get("ref"); got != "value" {
		t.Errorf("nameref lookup = %q, want %q", got, "value")
	}
}

func TestEnvironOnlyExported(t *testing.T) {
	s := New()
	_ = s.Set("EXPORTED_TEST_VAR", "yes")
	s.MarkAttr("EXPORTED_TEST_VAR", AttrExported)
	_ = s.Set("private_test_var", "no")

	env := s.Environ()
	sawExported, sawPrivate := false, false
	for _, kv := range env {
		if kv == "EXPORTED_TEST_VAR=yes" {
			sawExported = true
		}
		if kv == "private_test_var=no" {
			sawPrivate = true
		}
	}
	if !sawExported {
		t.Error("exported variable missing from environ")
	}
	if sawPrivate {
		t.Error("unexported variable leaked into environ")
	}
}

func TestOptions(t *testing.T) {
	o := NewOptions()
	if o.Get("errexit") {
		t.Error("errexit should default off")
	}
	if !o.Set("errexit", true) || !o.Get("errexit") {
		t.Error("Set errexit failed")
	}
	if o.Set("no-such-option", true) {
		t.Error("unknown option should be rejected")
	}
	if !o.SetShort('e', false) || o.Get("errexit") {
		t.Error("SetShort -e off failed")
	}
}

func TestFlagString(t *testing.T) {
	o := NewOptions()
	o.SetShort('e', true)
	o.SetShort('x', true)
	fs := o.FlagString()
	if fs != "ex" {
		t.Errorf("FlagString = %q, want %q", fs, "ex")
	}
}

func TestScopeRestorationDepth(t *testing.T) {
	s := New()
	depth := s.ScopeDepth()
	s.PushScope()
	s.PushScope()
	s.PopScope()
	s.PopScope()
	if s.ScopeDepth() != depth {
		t.Errorf("scope depth %d, want %d", s.ScopeDepth(), depth)
	}
}
