// internal/filters/filters.go
package filters

import (
	"net/http"
	"strings"
)

// ReadOnlyMethods are the request methods that do not pin on their own.
var ReadOnlyMethods = []string{
	http.MethodGet,
	http.MethodTrace,
	http.MethodHead,
	http.MethodOptions,
}

// Input is what a filter sees of an inbound operation.
type Input struct {
	Method    string // HTTP method or operation kind
	Operation string // fully-qualified operation or handler name, may be empty
	HasMarker bool   // the client carries the sticky marker
}

// Filter reports whether the operation should pin the unit of work.
type Filter func(Input) bool

// IsReadOnly reports whether method is one of ReadOnlyMethods.
func IsReadOnly(method string) bool {
	for _, m := range ReadOnlyMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// RequestMethod fires for any method outside ReadOnlyMethods.
func RequestMethod(in Input) bool {
	return !IsReadOnly(in.Method)
}

// Marker fires when the sticky marker is present.
func Marker(in Input) bool {
	return in.HasMarker
}

// Operations fires for the named operations, whatever their method.
func Operations(names ...string) Filter {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = struct{}{}
		}
	}
	return func(in Input) bool {
		if in.Operation == "" {
			return false
		}
		_, ok := set[in.Operation]
		return ok
	}
}

// Policy is a set of filters joined by OR. No filter can veto another.
type Policy []Filter

// DefaultPolicy pins on write methods only.
func DefaultPolicy() Policy {
	return Policy{RequestMethod}
}

// ShouldPin reports whether any filter fires. An empty policy never pins.
func (p Policy) ShouldPin(in Input) bool {
	for _, f := range p {
		if f != nil && f(in) {
			return true
		}
	}
	return false
}

// With returns a copy of p extended with filters.
func (p Policy) With(filters ...Filter) Policy {
	ret := make(Policy, 0, len(p)+len(filters))
	ret = append(ret, p...)
	return append(ret, filters...)
}
