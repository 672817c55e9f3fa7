package state

import (
	"sort"
	"strconv"
	"strings"
)

// Attr is a variable attribute bit-set.
type Attr uint16

const (
	AttrReadonly Attr = 1 << iota
	AttrExported
	AttrInteger
	AttrLowercase
	AttrUppercase
	AttrIndexedArray
	AttrAssocArray
	AttrNameref
	AttrTrace
	// AttrTombstone marks a name unset in an inner scope, masking any outer
	// definition without modifying it.
	AttrTombstone
)

// Variable is one shell variable: a scalar, an indexed array or an
// associative array, plus its attributes.
type Variable struct {
	Name  string
	Value string
	Attrs Attr

	// Indexed holds sparse int-indexed elements when AttrIndexedArray is set.
	Indexed map[int]string
	// Assoc holds string-keyed elements when AttrAssocArray is set;
	// AssocKeys preserves insertion order.
	Assoc     map[string]string
	AssocKeys []string
}

func (v *Variable) Has(a Attr) bool { return v.Attrs&a != 0 }

// Scalar returns the value used when the variable is referenced without a
// subscript: element 0 for indexed arrays, the plain value otherwise.
func (v *Variable) Scalar() string {
	switch {
	case v.Has(AttrIndexedArray):
		return v.Indexed[0]
	case v.Has(AttrAssocArray):
		return v.Assoc["0"]
	default:
		return v.Value
	}
}

// ArrayValues returns the elements in index order (insertion order for
// associative arrays).
func (v *Variable) ArrayValues() []string {
	switch {
	case v.Has(AttrIndexedArray):
		keys := make([]int, 0, len(v.Indexed))
		for k := range v.Indexed {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, v.Indexed[k])
		}
		return out
	case v.Has(AttrAssocArray):
		out := make([]string, 0, len(v.AssocKeys))
		for _, k := range v.AssocKeys {
			out = append(out, v.Assoc[k])
		}
		return out
	default:
		return []string{v.Value}
	}
}

// SetAssoc sets a key preserving first-insertion order.
func (v *Variable) SetAssoc(key, value string) {
	if v.Assoc == nil {
		v.Assoc = make(map[string]string)
	}
	if _, exists := v.Assoc[key]; !exists {
		v.AssocKeys = append(v.AssocKeys, key)
	}
	v.Assoc[key] = value
}

// applyCase applies the lowercase/uppercase attributes on assignment.
func (v *Variable) applyCase(s string) string {
	switch {
	case v.Has(AttrLowercase):
		return strings.ToLower(s)
	case v.Has(AttrUppercase):
		return strings.ToUpper(s)
	}
	return s
}

// normalizeInteger evaluates s as a decimal integer when the integer
// attribute is set; non-numeric text becomes 0, matching assignment
// semantics for integer variables.
func normalizeInteger(s string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(n, 10)
}

func (v *Variable) clone() *Variable {
	nv := &Variable{Name: v.Name, Value: v.Value, Attrs: v.Attrs}
	if v.Indexed != nil {
		nv.Indexed = make(map[int]string, len(v.Indexed))
		for k, e := range v.Indexed {
			nv.Indexed[k] = e
		}
	}
	if v.Assoc != nil {
		nv.Assoc = make(map[string]string, len(v.Assoc))
		for k, e := range v.Assoc {
			nv.Assoc[k] = e
		}
		nv.AssocKeys = append([]string(nil), v.AssocKeys...)
	}
	return nv
}
