package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the JSON type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Member is one key/value pair of an object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a decoded JSON value. Objects keep the key order they were
// written in and numbers keep their literal text.
// The zero Value is JSON null.
type Value struct {
	kind    Kind
	b       bool
	s       string // string contents or number literal
	items   []Value
	members []Member
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a number literal.
func Number(n json.Number) Value { return Value{kind: KindNumber, s: string(n)} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array builds an array from items.
func Array(items ...Value) Value { return Value{kind: KindArray, items: items} }

// Object builds an object from members. A repeated key keeps the position
// of its first occurrence and the value of its last.
func Object(members ...Member) Value {
	v := Value{kind: KindObject, members: make([]Member, 0, len(members))}
	for _, m := range members {
		v.set(m.Key, m.Value)
	}
	return v
}

func (v *Value) set(key string, val Value) {
	for i := range v.members {
		if v.members[i].Key == key {
			v.members[i].Value = val
			return
		}
	}
	v.members = append(v.members, Member{Key: key, Value: val})
}

// Kind reports the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string contents when v is a string.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Boolean returns the boolean when v is a bool.
func (v Value) Boolean() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Num returns the number literal when v is a number.
func (v Value) Num() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

// Len returns the number of array items or object members.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	}
	return 0
}

// Items returns the array items. The slice must not be modified.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Members returns the object members in source order. The slice must not
// be modified.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Has reports whether v is an object with the given key.
func (v Value) Has(key string) bool {
	_, ok := v.Field(key)
	return ok
}

// Field returns the member named key when v is an object.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Lookup walks path through nested objects. It reports false as soon as a
// step is not an object or lacks the key.
func (v Value) Lookup(path ...string) (Value, bool) {
	if len(path) == 0 {
		return v, true
	}
	next, ok := v.Field(path[0])
	if !ok {
		return Value{}, false
	}
	return next.Lookup(path[1:]...)
}

// LookupDotted is Lookup with a dot separated path such as "input.tool_name".
func (v Value) LookupDotted(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	return v.Lookup(strings.Split(path, ".")...)
}

// Truthy mirrors the usual notion of an empty value: null, false, zero,
// "" and empty containers are not truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		f, err := json.Number(v.s).Float64()
		return err != nil || f != 0
	case KindString:
		return v.s != ""
	default:
		return v.Len() > 0
	}
}

// Text renders v for display: strings unquoted, everything else as JSON.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.s
	}
	return v.String()
}

// String returns the compact JSON encoding of v.
func (v Value) String() string {
	return string(v.appendJSON(nil, false))
}

// SpacedJSON encodes v on one line with a space after every ',' and ':'.
func (v Value) SpacedJSON() []byte {
	return v.appendJSON(nil, true)
}

// MarshalJSON encodes v compactly, preserving object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil, false), nil
}

func (v Value) appendJSON(buf []byte, spaced bool) []byte {
	switch v.kind {
	case KindNull:
		return append(buf, "null"...)
	case KindBool:
		if v.b {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case KindNumber:
		return append(buf, v.s...)
	case KindString:
		return appendQuoted(buf, v.s)
	case KindArray:
		buf = append(buf, '[')
		for i, it := range v.items {
			if i > 0 {
				buf = appendSep(buf, ',', spaced)
			}
			buf = it.appendJSON(buf, spaced)
		}
		return append(buf, ']')
	case KindObject:
		buf = append(buf, '{')
		for i, m := range v.members {
			if i > 0 {
				buf = appendSep(buf, ',', spaced)
			}
			buf = appendQuoted(buf, m.Key)
			buf = appendSep(buf, ':', spaced)
			buf = m.Value.appendJSON(buf, spaced)
		}
		return append(buf, '}')
	}
	return buf
}

func appendSep(buf []byte, sep byte, spaced bool) []byte {
	buf = append(buf, sep)
	if spaced {
		buf = append(buf, ' ')
	}
	return buf
}

func appendQuoted(buf []byte, s string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return append(buf, bytes.TrimSuffix(b.Bytes(), []byte{'\n'})...)
}

// UnmarshalJSON decodes exactly one JSON value from data.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	val, err := ReadValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("core: trailing data after JSON value")
	}
	*v = val
	return nil
}

// ReadValue reads the next complete value from dec token by token. It
// turns on UseNumber so number literals survive unchanged.
func ReadValue(dec *json.Decoder) (Value, error) {
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return readFrom(dec, tok)
}

func readFrom(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Value{kind: KindArray}
			for dec.More() {
				next, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				item, err := readFrom(dec, next)
				if err != nil {
					return Value{}, err
				}
				arr.items = append(arr.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		case '{':
			obj := Value{kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("core: object key is %T", keyTok)
				}
				next, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				val, err := readFrom(dec, next)
				if err != nil {
					return Value{}, err
				}
				obj.set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		}
	}
	return Value{}, fmt.Errorf("core: unexpected token %v", tok)
}
