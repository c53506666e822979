// Package export writes extracted records as JSON, JSON lines or msgpack.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/modoterra/hookscope/pkg/core"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatMsgpack Format = "msgpack"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatJSONL, FormatMsgpack}

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want json, jsonl or msgpack)", s)
}

// Write encodes records to w in format f.
func Write(w io.Writer, f Format, records []core.Record) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatJSONL:
		return writeJSONL(w, records)
	case FormatMsgpack:
		return writeMsgpack(w, records)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

func writeJSON(w io.Writer, records []core.Record) error {
	if records == nil {
		records = []core.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeJSONL(w io.Writer, records []core.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeMsgpack(w io.Writer, records []core.Record) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.EncodeArrayLen(len(records)); err != nil {
		return err
	}
	for _, r := range records {
		if err := encodeValue(enc, r.Value()); err != nil {
			return err
		}
	}
	return nil
}

// encodeValue writes v keeping object key order. Integral numbers become
// msgpack integers; other numbers become floats.
func encodeValue(enc *msgpack.Encoder, v core.Value) error {
	switch v.Kind() {
	case core.KindNull:
		return enc.EncodeNil()
	case core.KindBool:
		b, _ := v.Boolean()
		return enc.EncodeBool(b)
	case core.KindNumber:
		n, _ := v.Num()
		if i, err := n.Int64(); err == nil {
			return enc.EncodeInt(i)
		}
		f, err := n.Float64()
		if err != nil {
			// Out of float range; keep the literal.
			return enc.EncodeString(n.String())
		}
		return enc.EncodeFloat64(f)
	case core.KindString:
		s, _ := v.Str()
		return enc.EncodeString(s)
	case core.KindArray:
		items := v.Items()
		if err := enc.EncodeArrayLen(len(items)); err != nil {
			return err
		}
		for _, it := range items {
			if err := encodeValue(enc, it); err != nil {
				return err
			}
		}
		return nil
	case core.KindObject:
		members := v.Members()
		if err := enc.EncodeMapLen(len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := enc.EncodeString(m.Key); err != nil {
				return err
			}
			if err := encodeValue(enc, m.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("export: unsupported kind %s", v.Kind())
}
