// Package extract locates product lists inside responses of unknown shape.
package extract

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// RootPath addresses the decoded value itself.
const RootPath = "$"

// Guesser probes a fixed list of key paths, then the same paths under the
// first wrapper key present at the root.
type Guesser struct {
	Paths    []string
	Wrappers []string
}

// Guess returns the first non-empty list and the path that produced it.
// Wrapped matches are reported as "wrapper.path". Data without any of the
// paths yields a nil list.
func (g Guesser) Guess(data any) ([]any, string) {
	if items, path, ok := FindList(data, g.Paths); ok {
		return items, path
	}

	root, ok := data.(map[string]any)
	if !ok {
		return nil, ""
	}
	for _, wrapper := range g.Wrappers {
		inner, present := root[wrapper]
		if !present || inner == nil {
			continue
		}
		if items, path, ok := FindList(inner, g.Paths); ok {
			return items, joinPath(wrapper, path)
		}
		break
	}
	return nil, ""
}

// FindList walks paths in order and returns the first value that is a
// non-empty list.
func FindList(data any, paths []string) ([]any, string, bool) {
	for _, path := range paths {
		value, ok := Lookup(data, path)
		if !ok {
			continue
		}
		if items, isList := value.([]any); isList && len(items) > 0 {
			return items, path, true
		}
	}
	return nil, "", false
}

// Lookup resolves a dotted path such as "search_results.results" or
// "offers.0.price". An empty path or "$" returns data.
func Lookup(data any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || path == RootPath {
		return data, data != nil
	}

	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, current != nil
}

// Keys returns the sorted top-level keys of a JSON object.
func Keys(data any) []string {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(prefix, path string) string {
	if path == RootPath || path == "" {
		return prefix
	}
	return prefix + "." + path
}

// DecodeJSON decodes one JSON value into maps, slices and json.Number.
func DecodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
