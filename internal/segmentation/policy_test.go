package segmentation

import "testing"

func TestShouldRefreshOnCreate(t *testing.T) {
	if !ShouldRefreshOnCreate(&ContactSegment{IsAutoUpdate: true}) {
		t.Error("auto-update segments refresh on create")
	}
	if ShouldRefreshOnCreate(&ContactSegment{IsAutoUpdate: false}) {
		t.Error("non-auto-update segments do not refresh on create")
	}
}

func TestShouldRefreshOnUpdate(t *testing.T) {
	conditions := &Group{
		Operator: LogicAnd,
		Rules:    []Node{{Rule: &Rule{Field: "company", Operator: OpEquals, Value: "Acme"}}},
	}
	changed := &Group{
		Operator: LogicAnd,
		Rules:    []Node{{Rule: &Rule{Field: "company", Operator: OpEquals, Value: "Initech"}}},
	}

	base := &ContactSegment{Name: "engaged", Conditions: conditions, IsAutoUpdate: true}

	tests := []struct {
		name string
		next ContactSegment
		want bool
	}{
		{"rename only", ContactSegment{Name: "renamed", Conditions: conditions, IsAutoUpdate: true}, false},
		{"description only", ContactSegment{Name: "engaged", Description: "new", Conditions: conditions, IsAutoUpdate: true}, false},
		{"is_active only", ContactSegment{Name: "engaged", Conditions: conditions, IsAutoUpdate: true, IsActive: true}, false},
		{"conditions changed", ContactSegment{Name: "engaged", Conditions: changed, IsAutoUpdate: true}, true},
		{"auto-update toggled", ContactSegment{Name: "engaged", Conditions: conditions, IsAutoUpdate: false}, true},
		{"conditions cleared", ContactSegment{Name: "engaged", Conditions: nil, IsAutoUpdate: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRefreshOnUpdate(base, &tt.next); got != tt.want {
				t.Errorf("ShouldRefreshOnUpdate(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestConditionsEqualIgnoresPointerIdentity(t *testing.T) {
	a := &Group{Operator: LogicOr, Rules: []Node{{Rule: &Rule{Field: "tags", Operator: OpTagContains, Value: "vip"}}}}
	b := &Group{Operator: LogicOr, Rules: []Node{{Rule: &Rule{Field: "tags", Operator: OpTagContains, Value: "vip"}}}}

	if !conditionsEqual(a, b) {
		t.Error("structurally identical trees should compare equal")
	}
	if !conditionsEqual(nil, nil) {
		t.Error("two nil trees are equal")
	}
	if conditionsEqual(a, nil) {
		t.Error("present vs nil trees differ")
	}
}
