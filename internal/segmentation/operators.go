package segmentation

import (
	"strconv"
	"strings"
	"time"
)

// Apply evaluates one comparison operator against a resolved value and a
// rule operand. It never returns an error: an unknown operator, a
// malformed operand, or a type mismatch all yield false, so a broken rule
// narrows its segment instead of widening it.
func Apply(op Operator, v Value, operand any) bool {
	switch op {
	case OpEquals:
		return valuesEqual(v, operand)
	case OpNotEquals:
		return !valuesEqual(v, operand)
	case OpContains:
		return strings.Contains(lower(v), strings.ToLower(coerceString(operand)))
	case OpNotContains:
		return !strings.Contains(lower(v), strings.ToLower(coerceString(operand)))
	case OpStartsWith:
		return strings.HasPrefix(lower(v), strings.ToLower(coerceString(operand)))
	case OpEndsWith:
		return strings.HasSuffix(lower(v), strings.ToLower(coerceString(operand)))
	case OpGreaterThan:
		return valueNumber(v) > operandNumber(operand)
	case OpLessThan:
		return valueNumber(v) < operandNumber(operand)
	case OpGreaterEqual:
		return valueNumber(v) >= operandNumber(operand)
	case OpLessEqual:
		return valueNumber(v) <= operandNumber(operand)
	case OpIsEmpty:
		return isEmpty(v)
	case OpIsNotEmpty:
		return !isEmpty(v)
	case OpInList:
		return inList(v, operand)
	case OpNotInList:
		return !inList(v, operand)
	case OpDateBefore:
		return valueDate(v).Before(operandDate(operand))
	case OpDateAfter:
		return valueDate(v).After(operandDate(operand))
	case OpTagContains:
		return tagContains(v, operand)
	}
	return false
}

// valueString renders a resolved value in its canonical string form.
// Lists join with commas, mirroring how the rule builder's source
// environment stringified arrays.
func valueString(v Value) string {
	switch v.Kind {
	case KindString, KindBool:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Time.Format(time.RFC3339)
	case KindList:
		return strings.Join(v.List, ",")
	}
	return ""
}

func lower(v Value) string { return strings.ToLower(valueString(v)) }

// valuesEqual is strict, case-sensitive equality, with numeric equality
// when both sides are numbers (so the counter 12 equals the operand "12").
func valuesEqual(v Value, operand any) bool {
	vs, os := valueString(v), coerceString(operand)
	if vs == os {
		return true
	}
	a, errA := strconv.ParseFloat(vs, 64)
	b, errB := strconv.ParseFloat(os, 64)
	return errA == nil && errB == nil && a == b
}

func valueNumber(v Value) float64 {
	switch v.Kind {
	case KindNumber, KindBool:
		return v.Num
	case KindString:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return n
		}
	}
	return 0
}

func operandNumber(operand any) float64 {
	switch x := operand.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return n
		}
	}
	return 0
}

// isEmpty reports whether a resolved value is falsy: absent, the empty
// string, zero, false, or a zero-length list. A present date is never
// empty. is_not_empty is the exact complement by construction.
func isEmpty(v Value) bool {
	switch v.Kind {
	case KindAbsent:
		return true
	case KindString:
		return v.Str == ""
	case KindNumber:
		return v.Num == 0
	case KindBool:
		return v.Num == 0
	case KindList:
		return len(v.List) == 0
	}
	return false
}

// inList tests membership of the resolved value in an operand array,
// element-wise with the same equality as equals. A non-array operand is
// treated as a single-element list.
func inList(v Value, operand any) bool {
	items, ok := operand.([]any)
	if !ok {
		if operand == nil {
			return false
		}
		items = []any{operand}
	}
	for _, item := range items {
		if valuesEqual(v, item) {
			return true
		}
	}
	return false
}

var epoch = time.Unix(0, 0).UTC()

// valueDate returns the resolved value as a time, coercing anything that
// is not (or does not parse as) a date to the epoch. Ordering operators
// therefore treat absent dates as epoch zero.
func valueDate(v Value) time.Time {
	switch v.Kind {
	case KindDate:
		return v.Time
	case KindString:
		if t, ok := parseDate(v.Str); ok {
			return t
		}
	case KindNumber:
		return time.UnixMilli(int64(v.Num)).UTC()
	}
	return epoch
}

func operandDate(operand any) time.Time {
	switch x := operand.(type) {
	case string:
		if t, ok := parseDate(x); ok {
			return t
		}
	case float64:
		return time.UnixMilli(int64(x)).UTC()
	case time.Time:
		return x
	}
	return epoch
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// tagContains requires a list-typed value and matches when any element
// case-insensitively contains the operand substring.
func tagContains(v Value, operand any) bool {
	if v.Kind != KindList {
		return false
	}
	needle := strings.ToLower(coerceString(operand))
	for _, tag := range v.List {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
