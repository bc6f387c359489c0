package step

import "testing"

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || b == "" {
		t.Fatal("Expected non-empty IDs")
	}
	if a == b {
		t.Errorf("Expected distinct IDs, got %s twice", a)
	}
}

func TestDeriveIDDeterministic(t *testing.T) {
	a := DeriveID("sqlite", "/data/orders.db", "SELECT * FROM orders")
	b := DeriveID("sqlite", "/data/orders.db", "SELECT * FROM orders")
	if a != b {
		t.Errorf("Expected stable ID, got %s and %s", a, b)
	}

	c := DeriveID("sqlite", "/data/orders.db", "SELECT * FROM customers")
	if a == c {
		t.Error("Expected different queries to derive different IDs")
	}
}

func TestDeriveIDPartBoundaries(t *testing.T) {
	a := DeriveID("ab", "c")
	b := DeriveID("a", "bc")
	if a == b {
		t.Error("Expected part boundaries to affect the ID")
	}
}
