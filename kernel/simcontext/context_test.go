package simcontext

import "testing"

type described struct{ name string }

func (d described) Description() string { return d.name }

func TestLookupOrCreateSubContextCreatesNested(t *testing.T) {
	root := New()
	stats := root.LookupOrCreateSubContext("statistics/tallies")
	again := root.LookupOrCreateSubContext("statistics/tallies")
	if stats != again {
		t.Fatal("expected the same Context instance for the same path")
	}
}

func TestBindObjectUsesDescribedName(t *testing.T) {
	root := New()
	obj := described{name: "queue-length"}
	if err := root.BindObject("", obj); err != nil {
		t.Fatalf("BindObject: %v", err)
	}
	got, ok := root.Lookup("queue-length")
	if !ok || got != obj {
		t.Fatalf("Lookup(queue-length) = %v, %v", got, ok)
	}
}

func TestBindObjectWithoutNameOrDescriptionFails(t *testing.T) {
	root := New()
	if err := root.BindObject("", 42); err == nil {
		t.Fatal("expected an error binding an unnamed, undescribed object")
	}
}

func TestNamesSorted(t *testing.T) {
	root := New()
	_ = root.BindObject("b", 1)
	_ = root.BindObject("a", 2)
	names := root.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Names() = %v, want [a b]", names)
	}
}
