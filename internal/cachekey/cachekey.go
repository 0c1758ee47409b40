// Package cachekey builds the canonical string keys the normalized store
// indexes records and links by: a field-key from a field name plus its
// arguments, and a fully-qualified key joining an entity key to a field-key.
package cachekey

import (
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// KeyOfField returns the canonical field-key for name plus args. With no
// arguments (or all-undefined arguments) the key is just the field name;
// otherwise it is name(<canonical JSON>), where the JSON object has its
// keys sorted and any nil-valued entries coming from an undefined variable
// dropped, so semantically equal argument sets always produce equal keys.
func KeyOfField(name string, args map[string]any) string {
	canon := canonicalArgs(args)
	if canon == "" {
		return name
	}
	return name + "(" + canon + ")"
}

// JoinKeys composes a parent entity key with a field-key into the
// fully-qualified key the link table is indexed by. The separator is a
// literal "." that never appears inside a field-key or entity key on its
// own (entity keys are "Typename:id" or a bare root name; field-keys are
// "name" or "name(...)"), so the composition is injective.
func JoinKeys(parentKey, fieldKey string) string {
	return parentKey + "." + fieldKey
}

// canonicalArgs serializes args as a JSON object with sorted keys, omitting
// any key whose value is nil (the substituted form of an undefined
// variable reference). It builds the object incrementally with sjson.SetRaw
// in sorted-key order rather than relying on map-iteration order, so the
// same argument set always serializes identically regardless of how the
// caller built the map.
func canonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	out := "{}"
	for _, k := range keys {
		raw := canonicalValue(args[k])
		var err error
		out, err = sjson.SetRaw(out, k, raw)
		if err != nil {
			// sjson.SetRaw only fails on malformed raw JSON, which
			// canonicalValue never produces.
			panic(err)
		}
	}
	return out
}

// canonicalValue renders a single argument value as canonical JSON: scalars
// via encoding/json-compatible literals, lists recursively, and nested
// objects recursively with sorted keys (same rule as canonicalArgs, but
// nil-valued keys are kept at nested levels: omission only applies to the
// top-level undefined-variable case).
func canonicalValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{}"
		for _, k := range keys {
			var err error
			out, err = sjson.SetRaw(out, k, canonicalValue(val[k]))
			if err != nil {
				panic(err)
			}
		}
		return out
	case []any:
		out := "[]"
		for i, item := range val {
			var err error
			out, err = sjson.SetRaw(out, "["+strconv.Itoa(i)+"]", canonicalValue(item))
			if err != nil {
				panic(err)
			}
		}
		return out
	default:
		// Scalars: round-trip through sjson.SetRaw's sibling, sjson.Set,
		// at a throwaway key, then lift the encoded value back out with
		// gjson so bools/numbers/strings all get the library's own
		// canonical scalar encoding instead of a hand-rolled one.
		enc, err := sjson.Set("{}", "v", val)
		if err != nil {
			panic(err)
		}
		return gjson.Get(enc, "v").Raw
	}
}
