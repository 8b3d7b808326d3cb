package pricing

import "testing"

func TestNormalizeMergesIdenticalSlots(t *testing.T) {
	p := latte()
	cart := Cart{
		{Product: p, Selections: map[string]Selection{"size": SingleChoice("m"), "topping": MultiChoice("pearl", "cream")}, Qty: 1},
		{Product: p, Selections: map[string]Selection{"topping": MultiChoice("cream", "pearl"), "size": SingleChoice("m")}, Qty: 2},
	}
	merged := cart.Normalize()
	if len(merged) != 1 {
		t.Fatalf("expected one merged line, got %d", len(merged))
	}
	if merged[0].Qty != 3 {
		t.Fatalf("expected merged qty 3, got %d", merged[0].Qty)
	}
	// 40000 + 5000 + 7000 + 3000 = 55000 per unit, counted exactly once.
	if got := merged.Subtotal(); got != 165_000 {
		t.Fatalf("expected subtotal 165000, got %d", got)
	}
}

func TestNormalizeKeepsDistinctSlots(t *testing.T) {
	p := latte()
	cart := Cart{
		{Product: p, Selections: map[string]Selection{"size": SingleChoice("s")}, Qty: 1},
		{Product: p, Selections: map[string]Selection{"size": SingleChoice("m")}, Qty: 1},
	}
	if got := len(cart.Normalize()); got != 2 {
		t.Fatalf("different selections must stay separate, got %d lines", got)
	}
}

func TestNormalizeDropsNonPositiveQty(t *testing.T) {
	p := latte()
	cart := Cart{
		{Product: p, Qty: 0},
		{Product: p, Qty: -1},
		{Product: p, Qty: 2},
	}
	merged := cart.Normalize()
	if len(merged) != 1 || merged[0].Qty != 2 {
		t.Fatalf("expected single line qty 2, got %+v", merged)
	}
}

func TestSlotKeyIgnoresMultiSelectOrder(t *testing.T) {
	p := latte()
	a := Line{Product: p, Selections: map[string]Selection{"topping": MultiChoice("pearl", "cream")}}
	b := Line{Product: p, Selections: map[string]Selection{"topping": MultiChoice("cream", "pearl")}}
	if a.SlotKey() != b.SlotKey() {
		t.Fatalf("slot keys differ: %q vs %q", a.SlotKey(), b.SlotKey())
	}
}

func TestSlotKeyEmptySelectionEqualsNoSelection(t *testing.T) {
	p := latte()
	a := Line{Product: p, Selections: map[string]Selection{"topping": MultiChoice()}}
	b := Line{Product: p}
	if a.SlotKey() != b.SlotKey() {
		t.Fatalf("empty multi-select should not change identity: %q vs %q", a.SlotKey(), b.SlotKey())
	}
}
