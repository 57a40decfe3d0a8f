package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrMissingField is returned by Decode when a non-optional field is absent
// or null. Optional fields are the pointer-typed ones.
var ErrMissingField = errors.New("missing required field")

var bytesType = reflect.TypeOf(Bytes(nil))

// checkRequired walks raw alongside t and reports the first non-optional
// field that is absent or null. Nested structs and slice elements are
// checked too. Type mismatches are left to json.Unmarshal.
func checkRequired(t reflect.Type, raw json.RawMessage, path string) error {
	switch t.Kind() {
	case reflect.Pointer:
		if isNull(raw) {
			return nil
		}
		return checkRequired(t.Elem(), raw, path)

	case reflect.Slice:
		if t == bytesType || isNull(raw) {
			return nil
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil
		}
		for i, e := range elems {
			if err := checkRequired(t.Elem(), e, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := jsonName(f)
			if name == "" {
				continue
			}
			v, ok := fields[name]
			if f.Type.Kind() != reflect.Pointer && (!ok || isNull(v)) {
				return fmt.Errorf("%w: %s%s", ErrMissingField, path, name)
			}
			if !ok {
				continue
			}
			if err := checkRequired(f.Type, v, path+name+"."); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
