package args

import (
	"sort"
	"strings"
)

// Values holds parsed arguments keyed by upper-cased parameter name. Getters
// accept any case and return the zero value for absent parameters.
type Values struct {
	m map[string]any
}

func newValues() Values {
	return Values{m: make(map[string]any)}
}

func key(name string) string {
	return strings.ToUpper(strings.TrimPrefix(name, "--"))
}

func (v Values) set(name string, value any) {
	v.m[key(name)] = value
}

// Get returns the raw typed value.
func (v Values) Get(name string) (any, bool) {
	val, ok := v.m[key(name)]
	return val, ok
}

// Has reports whether the parameter was supplied or defaulted.
func (v Values) Has(name string) bool {
	_, ok := v.m[key(name)]
	return ok
}

// Len returns the number of parameters present.
func (v Values) Len() int {
	return len(v.m)
}

// Keys returns the present parameter keys, sorted.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int returns a vmid or int parameter.
func (v Values) Int(name string) int {
	n, _ := v.m[key(name)].(int)
	return n
}

// IntOr returns the parameter, or def when it is absent.
func (v Values) IntOr(name string, def int) int {
	if !v.Has(name) {
		return def
	}
	return v.Int(name)
}

// String returns a string-valued parameter (string, ip, storage, node, choice).
func (v Values) String(name string) string {
	s, _ := v.m[key(name)].(string)
	return s
}

// Bool returns a flag parameter.
func (v Values) Bool(name string) bool {
	b, _ := v.m[key(name)].(bool)
	return b
}

// List returns a list parameter.
func (v Values) List(name string) []string {
	l, _ := v.m[key(name)].([]string)
	return l
}

// Bytes returns a memory parameter in bytes.
func (v Values) Bytes(name string) uint64 {
	n, _ := v.m[key(name)].(uint64)
	return n
}

// MiB returns a memory parameter in mebibytes.
func (v Values) MiB(name string) uint64 {
	return v.Bytes(name) / mebibyte
}
