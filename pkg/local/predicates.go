package local

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/pim/pkg/query"
)

// predicate tests the stored values of one field against a clause value
type predicate func(values []any, operand any) bool

// predicates is the operator table of the engine. Operators that are valid on the wire
// but missing here are rejected with query.ErrUnsupportedOperator.
func predicates() map[query.Operator]predicate {
	return map[query.Operator]predicate{
		query.OpEmpty:    isEmpty,
		query.OpNotEmpty: not(isEmpty),
		query.OpLike:     isLike,
		query.OpNotLike:  not(isLike),
		query.OpEqual:    isEqual,
		query.OpNotEqual: not(isEqual),
	}
}

func not(p predicate) predicate {
	return func(values []any, operand any) bool {
		return !p(values, operand)
	}
}

func isEmpty(values []any, _ any) bool {
	for _, v := range values {
		if text(v) != "" {
			return false
		}
	}
	return true
}

func isLike(values []any, operand any) bool {
	needle := strings.ToLower(text(operand))
	for _, v := range values {
		if strings.Contains(strings.ToLower(text(v)), needle) {
			return true
		}
	}
	return false
}

func isEqual(values []any, operand any) bool {
	want := text(operand)
	for _, v := range values {
		if text(v) == want {
			return true
		}
	}
	return false
}

// text renders a JSON-decoded value the way the remote service compares it
func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// flatten turns a stored value into the list of values a predicate sees
func flatten(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}
