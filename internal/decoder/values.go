package decoder

import (
	"encoding/base64"
	"strconv"

	"github.com/tidwall/gjson"
)

// Move values arrive in the ledger's JSON rendering: u64 as decimal strings,
// structs as {type, fields}, VecMap/VecSet as {contents: [...]}.

func structFields(r gjson.Result) gjson.Result {
	if fields := r.Get("fields"); fields.Exists() && fields.IsObject() {
		return fields
	}
	return r
}

func field(fields gjson.Result, name string) (gjson.Result, error) {
	r := fields.Get(name)
	if !r.Exists() {
		return r, missing(name)
	}
	return r, nil
}

func asString(name string, r gjson.Result) (string, error) {
	if r.Type != gjson.String {
		return "", invalid(name, "expected string")
	}
	return r.Str, nil
}

func asUint(name string, r gjson.Result) (uint64, error) {
	switch r.Type {
	case gjson.Number:
		if r.Num < 0 || r.Num != float64(uint64(r.Num)) {
			return 0, invalid(name, "expected unsigned integer")
		}
		return r.Uint(), nil
	case gjson.String:
		v, err := strconv.ParseUint(r.Str, 10, 64)
		if err != nil {
			return 0, invalid(name, "expected unsigned integer")
		}
		return v, nil
	default:
		return 0, invalid(name, "expected unsigned integer")
	}
}

func asBool(name string, r gjson.Result) (bool, error) {
	switch r.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	default:
		return false, invalid(name, "expected bool")
	}
}

func asID(name string, r gjson.Result) (string, error) {
	if r.IsObject() {
		return asString(name, r.Get("id"))
	}
	return asString(name, r)
}

// asList accepts a plain array or a VecSet-style {contents: [...]} wrapper.
func asList(name string, r gjson.Result) ([]gjson.Result, error) {
	if r.IsObject() {
		r = structFields(r).Get("contents")
	}
	if !r.IsArray() {
		return nil, invalid(name, "expected vector")
	}
	return r.Array(), nil
}

func asStrings(name string, r gjson.Result) ([]string, error) {
	items, err := asList(name, r)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := asID(name, item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func asUints(name string, r gjson.Result) ([]uint64, error) {
	items, err := asList(name, r)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(items))
	for _, item := range items {
		v, err := asUint(name, item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// asOptionalBytes decodes Option<vector<u8>>: null, a byte array, or base64.
func asOptionalBytes(name string, r gjson.Result) ([]byte, error) {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return nil, nil
	case r.Type == gjson.String:
		if r.Str == "" {
			return nil, nil
		}
		b, err := base64.StdEncoding.DecodeString(r.Str)
		if err != nil {
			return nil, invalid(name, "expected base64 bytes")
		}
		return b, nil
	case r.IsArray():
		items := r.Array()
		if len(items) == 0 {
			return nil, nil
		}
		out := make([]byte, len(items))
		for i, item := range items {
			v, err := asUint(name, item)
			if err != nil || v > 255 {
				return nil, invalid(name, "expected byte vector")
			}
			out[i] = byte(v)
		}
		return out, nil
	default:
		return nil, invalid(name, "expected byte vector")
	}
}

type mapEntry struct {
	Key   gjson.Result
	Value gjson.Result
}

// asVecMap returns VecMap entries in ledger order.
func asVecMap(name string, r gjson.Result) ([]mapEntry, error) {
	items, err := asList(name, r)
	if err != nil {
		return nil, err
	}
	entries := make([]mapEntry, 0, len(items))
	for _, item := range items {
		fields := structFields(item)
		key, value := fields.Get("key"), fields.Get("value")
		if !key.Exists() || !value.Exists() {
			return nil, invalid(name, "malformed map entry")
		}
		entries = append(entries, mapEntry{Key: key, Value: value})
	}
	return entries, nil
}

func optional(fields gjson.Result, name string) gjson.Result {
	return fields.Get(name)
}
