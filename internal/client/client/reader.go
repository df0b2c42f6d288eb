package client

import (
	"fmt"

	"github.com/holiman/uint256"
	"google.golang.org/protobuf/types/known/structpb"
)

// reader pulls typed fields out of a structpb reply. The first failure is
// kept in err and later reads return zero values.
type reader struct {
	fields map[string]*structpb.Value
	err    error
}

func (r *reader) fail(key, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %q is not a %s", ErrMalformedResponse, key, want)
	}
}

func (r *reader) value(key string, optional bool) (*structpb.Value, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.fields[key]
	if !ok || v == nil {
		if !optional {
			r.err = fmt.Errorf("%w: missing field %q", ErrMalformedResponse, key)
		}
		return nil, false
	}
	return v, true
}

func (r *reader) str(key string, optional bool) string {
	v, ok := r.value(key, optional)
	if !ok {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(key, "string")
		return ""
	}
	return s.StringValue
}

func (r *reader) text(key string) string    { return r.str(key, false) }
func (r *reader) optText(key string) string { return r.str(key, true) }

func (r *reader) num(key string, optional bool) int64 {
	v, ok := r.value(key, optional)
	if !ok {
		return 0
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		r.fail(key, "number")
		return 0
	}
	return int64(n.NumberValue)
}

func (r *reader) number(key string) int64    { return r.num(key, false) }
func (r *reader) optNumber(key string) int64 { return r.num(key, true) }

func (r *reader) flag(key string) bool {
	v, ok := r.value(key, true)
	if !ok {
		return false
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		r.fail(key, "bool")
		return false
	}
	return b.BoolValue
}

// amount reads a decimal string. A missing field is zero.
func (r *reader) amount(key string) *uint256.Int {
	s := r.str(key, true)
	if r.err != nil {
		return nil
	}
	if s == "" {
		return uint256.NewInt(0)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		r.err = fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, key, err)
		return nil
	}
	return v
}

func (r *reader) list(key string) []map[string]*structpb.Value {
	v, ok := r.value(key, true)
	if !ok {
		return nil
	}
	l, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		r.fail(key, "list")
		return nil
	}
	out := make([]map[string]*structpb.Value, 0, len(l.ListValue.GetValues()))
	for _, item := range l.ListValue.GetValues() {
		st, ok := item.GetKind().(*structpb.Value_StructValue)
		if !ok {
			r.fail(key, "list of objects")
			return nil
		}
		out = append(out, st.StructValue.GetFields())
	}
	return out
}
