package segmentation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/audience-engine/internal/domain"
)

// Kind is the semantic type of a resolved field value.
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindList
)

// Value is a resolved contact field. Exactly the arm named by Kind is
// meaningful; the coercion helpers in operators.go read the others.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
	List []string
}

func stringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func numberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func boolValue(b bool) Value {
	v := Value{Kind: KindBool, Str: "false"}
	if b {
		v.Str, v.Num = "true", 1
	}
	return v
}
func listValue(items []string) Value { return Value{Kind: KindList, List: items} }

func dateValue(t *time.Time) Value {
	if t == nil || t.IsZero() {
		// Absent dates match emptiness, coerce to epoch for ordering,
		// and never satisfy equality against a present operand.
		return Value{Kind: KindAbsent}
	}
	return Value{Kind: KindDate, Time: *t}
}

// Resolve returns the named field of a contact with its semantic type.
// Recognized names map to fixed attributes; anything else is an exact-key
// lookup in the contact's custom fields. Missing values resolve to the
// type identity (empty string, zero, empty list, absent date). Pure.
func Resolve(c *domain.Contact, field string) Value {
	switch field {
	case "email":
		return stringValue(c.Email)
	case "firstName":
		return stringValue(c.FirstName)
	case "lastName":
		return stringValue(c.LastName)
	case "name":
		return stringValue(c.FullName())
	case "company":
		return stringValue(c.Company)
	case "jobTitle":
		return stringValue(c.JobTitle)
	case "location":
		return stringValue(c.Location)
	case "website":
		return stringValue(c.Website)
	case "tags":
		return listValue(c.Tags)
	case "totalEmailsOpened":
		return numberValue(float64(c.TotalEmailsOpened))
	case "totalEmailsClicked":
		return numberValue(float64(c.TotalEmailsClicked))
	case "engagementScore":
		return numberValue(c.EngagementScore)
	case "isActive":
		return boolValue(c.IsActive)
	case "createdAt":
		created := c.CreatedAt
		return dateValue(&created)
	case "lastActivityAt":
		return dateValue(c.LastActivityAt)
	case "subscriptionDate":
		return dateValue(c.SubscriptionDate)
	case "unsubscribedAt":
		return dateValue(c.UnsubscribedAt)
	}
	return resolveCustom(c.CustomFields, field)
}

// resolveCustom performs the typed fallback lookup for fields outside the
// fixed attribute set. The dynamic value keeps the type it carried in the
// custom-field map.
func resolveCustom(fields map[string]any, key string) Value {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return Value{Kind: KindAbsent}
	}
	switch v := raw.(type) {
	case string:
		return stringValue(v)
	case float64:
		return numberValue(v)
	case int:
		return numberValue(float64(v))
	case bool:
		return boolValue(v)
	case []string:
		return listValue(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, coerceString(item))
		}
		return listValue(items)
	case time.Time:
		return dateValue(&v)
	}
	return stringValue(coerceString(raw))
}

// coerceString renders an arbitrary operand or custom-field value as a
// string the way the comparison operators expect.
func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, coerceString(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", v)
}
