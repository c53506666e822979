package extract

import "github.com/modoterra/hookscope/pkg/core"

// IsRecord reports whether v is an object carrying every required key at
// top level. The types of those members are not checked.
func IsRecord(v core.Value) bool {
	if v.Kind() != core.KindObject {
		return false
	}
	for _, key := range core.RequiredKeys {
		if !v.Has(key) {
			return false
		}
	}
	return true
}

// Validate wraps v as a record when IsRecord accepts it.
func Validate(v core.Value) (core.Record, bool) {
	if !IsRecord(v) {
		return core.Record{}, false
	}
	return core.NewRecord(v), true
}
