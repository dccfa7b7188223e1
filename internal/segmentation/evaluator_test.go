package segmentation

import (
	"encoding/json"
	"testing"

	"github.com/ignite/audience-engine/internal/domain"
)

func mustParseGroup(t *testing.T, raw string) *Group {
	t.Helper()
	g := &Group{}
	if err := json.Unmarshal([]byte(raw), g); err != nil {
		t.Fatalf("parse condition tree: %v", err)
	}
	return g
}

func TestEvaluateEmptyRootMatchesAll(t *testing.T) {
	eval := NewEvaluator(nil)
	c := testContact()

	if !eval.Evaluate(nil, c) {
		t.Error("nil root should match every contact")
	}
	if !eval.Evaluate(&Group{Operator: LogicAnd}, c) {
		t.Error("empty AND root should match every contact")
	}
	// The root special case applies regardless of the root's operator.
	if !eval.Evaluate(&Group{Operator: LogicOr}, c) {
		t.Error("empty OR root should match every contact")
	}
}

// Nested empty groups keep strict boolean identities: an empty OR
// sub-clause is unsatisfiable and must not widen an enclosing AND chain.
func TestNestedEmptyGroupSemantics(t *testing.T) {
	eval := NewEvaluator(nil)
	c := testContact()

	nestedEmptyOr := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [
			{"field": "jobTitle", "operator": "equals", "value": "CTO"},
			{"operator": "OR", "rules": []}
		]
	}`)
	if eval.Evaluate(nestedEmptyOr, c) {
		t.Error("AND containing a nested empty OR group must be false")
	}

	nestedEmptyAnd := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [
			{"field": "jobTitle", "operator": "equals", "value": "CTO"},
			{"operator": "AND", "rules": []}
		]
	}`)
	if !eval.Evaluate(nestedEmptyAnd, c) {
		t.Error("nested empty AND group is vacuously true")
	}

	orWithEmptyBranch := mustParseGroup(t, `{
		"operator": "OR",
		"rules": [
			{"operator": "OR", "rules": []},
			{"field": "jobTitle", "operator": "equals", "value": "CTO"}
		]
	}`)
	if !eval.Evaluate(orWithEmptyBranch, c) {
		t.Error("OR should still match via its satisfiable branch")
	}
}

func TestEvaluateEngagementScenario(t *testing.T) {
	eval := NewEvaluator(nil)
	c := &domain.Contact{EngagementScore: 80, TotalEmailsOpened: 12}

	group := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [
			{"field": "engagementScore", "operator": "greater_equal", "value": 75},
			{"field": "totalEmailsOpened", "operator": "greater_equal", "value": 10}
		]
	}`)
	if !eval.Evaluate(group, c) {
		t.Error("contact at 80/12 should match thresholds 75/10")
	}

	// Raising either threshold above the contact's value flips the match.
	tooHighScore := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [
			{"field": "engagementScore", "operator": "greater_equal", "value": 85},
			{"field": "totalEmailsOpened", "operator": "greater_equal", "value": 10}
		]
	}`)
	if eval.Evaluate(tooHighScore, c) {
		t.Error("threshold 85 should not match score 80")
	}

	tooHighOpens := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [
			{"field": "engagementScore", "operator": "greater_equal", "value": 75},
			{"field": "totalEmailsOpened", "operator": "greater_equal", "value": 15}
		]
	}`)
	if eval.Evaluate(tooHighOpens, c) {
		t.Error("threshold 15 opens should not match 12")
	}
}

func TestEvaluateTagScenario(t *testing.T) {
	eval := NewEvaluator(nil)
	c := &domain.Contact{Tags: []string{"vip", "newsletter"}}

	group := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [{"field": "tags", "operator": "tag_contains", "value": "VIP"}]
	}`)
	if !eval.Evaluate(group, c) {
		t.Error("tag_contains should match case-insensitively")
	}
}

func TestEvaluateNestedOrGroups(t *testing.T) {
	eval := NewEvaluator(nil)

	group := mustParseGroup(t, `{
		"operator": "AND",
		"rules": [
			{"field": "isActive", "operator": "equals", "value": true},
			{"operator": "OR", "rules": [
				{"field": "company", "operator": "contains", "value": "acme"},
				{"field": "engagementScore", "operator": "greater_than", "value": 90}
			]}
		]
	}`)

	matching := &domain.Contact{IsActive: true, Company: "Acme Corp"}
	if !eval.Evaluate(group, matching) {
		t.Error("active Acme contact should match via OR branch one")
	}

	highScore := &domain.Contact{IsActive: true, EngagementScore: 95}
	if !eval.Evaluate(group, highScore) {
		t.Error("active high-score contact should match via OR branch two")
	}

	inactive := &domain.Contact{IsActive: false, Company: "Acme Corp"}
	if eval.Evaluate(group, inactive) {
		t.Error("inactive contact should fail the AND chain")
	}
}

func TestEvaluateMalformedNodeIsFalseAndReported(t *testing.T) {
	var reported []error
	eval := NewEvaluator(func(_ *domain.Contact, err error) {
		reported = append(reported, err)
	})
	c := testContact()

	group := &Group{
		Operator: LogicOr,
		Rules: []Node{
			{}, // neither rule nor group
			{Rule: &Rule{Field: "jobTitle", Operator: OpEquals, Value: "CTO"}},
		},
	}

	if !eval.Evaluate(group, c) {
		t.Error("valid OR branch should still match despite malformed sibling")
	}
	if len(reported) != 1 {
		t.Errorf("reported %d errors, want 1", len(reported))
	}
}

func TestNodeJSONRoundTrip(t *testing.T) {
	raw := `{
		"operator": "OR",
		"rules": [
			{"field": "tags", "operator": "tag_contains", "value": "vip"},
			{"operator": "AND", "rules": [
				{"field": "company", "operator": "is_not_empty"}
			]}
		]
	}`
	g := mustParseGroup(t, raw)

	if len(g.Rules) != 2 {
		t.Fatalf("parsed %d children, want 2", len(g.Rules))
	}
	if g.Rules[0].Rule == nil || g.Rules[0].Group != nil {
		t.Error("first child should decode as a leaf rule")
	}
	if g.Rules[1].Group == nil || g.Rules[1].Rule != nil {
		t.Error("second child should decode as a nested group")
	}

	out, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	reparsed := &Group{}
	if err := json.Unmarshal(out, reparsed); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.Rules[1].Group == nil {
		t.Error("nested group lost in round trip")
	}
}
