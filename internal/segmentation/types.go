package segmentation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operator is a comparison operator in a segment rule. The set is closed;
// rules carrying any other name evaluate to false (fail-closed) rather
// than erroring, so a forward-incompatible rule can never over-match.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "not_equals"
	OpContains   Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"

	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpGreaterEqual Operator = "greater_equal"
	OpLessEqual    Operator = "less_equal"

	OpIsEmpty    Operator = "is_empty"
	OpIsNotEmpty Operator = "is_not_empty"

	OpInList    Operator = "in_list"
	OpNotInList Operator = "not_in_list"

	OpDateBefore Operator = "date_before"
	OpDateAfter  Operator = "date_after"

	OpTagContains Operator = "tag_contains"
)

// LogicOperator combines the children of a condition group.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Rule is a leaf condition: one field compared against one operand.
// Value is ignored by the emptiness operators.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Group is a boolean combination of rules and nested groups.
type Group struct {
	Operator LogicOperator `json:"operator"`
	Rules    []Node        `json:"rules"`
}

// Node is one node of a condition tree: exactly one of Rule or Group is
// set. The wire format distinguishes the two only by the presence of a
// "rules" key, so decoding happens here once and the evaluator can switch
// on the populated arm instead of re-probing field presence.
type Node struct {
	Rule  *Rule
	Group *Group
}

// UnmarshalJSON decodes a node as a Group when a "rules" key is present
// (even an empty array) and as a leaf Rule otherwise.
func (n *Node) UnmarshalJSON(data []byte) error {
	var probe struct {
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("condition node: %w", err)
	}
	if probe.Rules != nil {
		g := &Group{}
		if err := json.Unmarshal(data, g); err != nil {
			return fmt.Errorf("condition group: %w", err)
		}
		n.Group = g
		n.Rule = nil
		return nil
	}
	r := &Rule{}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("condition rule: %w", err)
	}
	n.Rule = r
	n.Group = nil
	return nil
}

// MarshalJSON writes the populated arm back in the wire shape.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Group != nil {
		return json.Marshal(n.Group)
	}
	if n.Rule != nil {
		return json.Marshal(n.Rule)
	}
	return nil, fmt.Errorf("empty condition node")
}

// ContactSegment is a named, user-defined filter over one tenant's
// contacts. Conditions nil means the segment was never configured with a
// filter; a refresh on such a segment is a no-op and leaves any manually
// managed membership untouched.
type ContactSegment struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	OwnerID       uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description,omitempty" db:"description"`
	Conditions    *Group     `json:"conditions,omitempty" db:"conditions"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	IsAutoUpdate  bool       `json:"is_auto_update" db:"is_auto_update"`
	ContactCount  int        `json:"contact_count" db:"contact_count"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty" db:"last_updated_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Membership is one materialized contact/segment join row, unique per
// pair. It is always a cache of the last refresh (or a manual override),
// never computed lazily on read.
type Membership struct {
	ContactID uuid.UUID `json:"contact_id" db:"contact_id"`
	SegmentID uuid.UUID `json:"segment_id" db:"segment_id"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}
