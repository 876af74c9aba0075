package guid

import "testing"

func TestNewHashSetDeduplicates(t *testing.T) {
	a := New()
	b := New()

	set := NewHashSet([]Guid{a, b, a})

	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}

	if !set.Contains(a) || !set.Contains(b) {
		t.Fatal("set should contain both distinct values")
	}
}

func TestHashSetAddRemove(t *testing.T) {
	set := NewHashSet(nil)
	value := New()

	if set.Contains(value) {
		t.Fatal("freshly created set should not contain an unrelated value")
	}

	set.Add(value)

	if !set.Contains(value) {
		t.Fatal("set should contain value after Add")
	}

	set.Remove(value)

	if set.Contains(value) {
		t.Fatal("set should not contain value after Remove")
	}
}

func TestHashSetSlice(t *testing.T) {
	values := []Guid{New(), New(), New()}
	set := NewHashSet(values)

	slice := set.Slice()

	if len(slice) != len(values) {
		t.Fatalf("len(Slice()) = %d, want %d", len(slice), len(values))
	}

	for _, value := range values {
		found := false

		for _, v := range slice {
			if v == value {
				found = true
				break
			}
		}

		if !found {
			t.Fatalf("Slice() missing expected value %v", value)
		}
	}
}
