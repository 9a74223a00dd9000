package world

import (
	"reflect"
	"testing"
)

func units(ids ...ID) []Entity {
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Unit{ID: id})
	}
	return out
}

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		current     []Entity
		known       []ID
		wantAdded   []ID
		wantRemoved []ID
	}{
		{name: "empty", current: nil, known: nil},
		{name: "all new", current: units("a", "b"), wantAdded: []ID{"a", "b"}},
		{name: "all gone", known: []ID{"a", "b"}, wantRemoved: []ID{"a", "b"}},
		{name: "mixed", current: units("b", "c"), known: []ID{"a", "b"}, wantAdded: []ID{"c"}, wantRemoved: []ID{"a"}},
		{name: "duplicate in snapshot", current: units("x", "x"), wantAdded: []ID{"x"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			added, removed := Diff(tt.current, tt.known)
			var gotAdded []ID
			for _, e := range added {
				gotAdded = append(gotAdded, e.EntityID())
			}
			if !reflect.DeepEqual(gotAdded, tt.wantAdded) {
				t.Fatalf("added = %v, want %v", gotAdded, tt.wantAdded)
			}
			if !reflect.DeepEqual(removed, tt.wantRemoved) {
				t.Fatalf("removed = %v, want %v", removed, tt.wantRemoved)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	if got := KindOf(&Unit{ID: "a", Type: "scv"}); got != "scv" {
		t.Fatalf("KindOf = %q, want scv", got)
	}
	if got := StateIdle.String(); got != "idle" {
		t.Fatalf("StateIdle = %q", got)
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()
	for st := StateIdle; st <= StateArmyDefending; st++ {
		got, ok := ParseState(st.String())
		if !ok || got != st {
			t.Fatalf("ParseState(%q) = %v, %v", st.String(), got, ok)
		}
	}
	if _, ok := ParseState("mining"); ok {
		t.Fatal("unknown names must not parse")
	}
}
