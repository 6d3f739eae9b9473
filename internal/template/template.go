package template

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Component is one layout entry. Params holds every key of the entry as decoded,
// including id, type and title; unknown keys are kept and otherwise ignored.
type Component struct {
	ID     string
	Type   string
	Title  string
	Params map[string]any
}

// Template is a dashboard definition: a title and an ordered layout.
type Template struct {
	Name   string      `json:"-"`
	Title  string      `json:"title"`
	Layout []Component `json:"layout"`
}

// Scope returns the namespace used for scoped mapping keys: id, else title, else field.
// An empty id counts as absent.
func (c Component) Scope(field string) string {
	if c.ID != "" {
		return c.ID
	}
	if c.Title != "" {
		return c.Title
	}
	return field
}

// ScopedKey is "{scope}.{field}".
func (c Component) ScopedKey(field string) string {
	return c.Scope(field) + "." + field
}

// Field returns the desired column name stored under key, if it is a non-empty string.
func (c Component) Field(key string) (string, bool) {
	s, ok := c.Params[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// String returns a string parameter or def.
func (c Component) String(key, def string) string {
	if s, ok := c.Field(key); ok {
		return s
	}
	return def
}

// Int returns a positive integer parameter or def. Numeric strings are accepted.
func (c Component) Int(key string, def int) int {
	var f float64
	switch v := c.Params[key].(type) {
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		x, err := v.Float64()
		if err != nil {
			return def
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = x
	default:
		return def
	}
	if f < 1 || math.IsNaN(f) || f > math.MaxInt32 {
		return def
	}
	return int(f)
}

// StringFields lists keys whose values are strings, sorted for determinism.
func (c Component) StringFields() []string {
	var out []string
	for k, v := range c.Params {
		if _, ok := v.(string); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes the component as its flat parameter object.
func (c Component) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.flat())
}

func (c Component) flat() map[string]any {
	m := make(map[string]any, len(c.Params)+3)
	for k, v := range c.Params {
		m[k] = v
	}
	if c.ID != "" {
		m["id"] = c.ID
	}
	if c.Type != "" {
		m["type"] = c.Type
	}
	if c.Title != "" {
		m["title"] = c.Title
	}
	return m
}

// UnmarshalJSON reads a flat parameter object.
func (c *Component) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	comp, err := componentFromMap(m)
	if err != nil {
		return err
	}
	*c = comp
	return nil
}

func componentFromMap(m map[string]any) (Component, error) {
	if m == nil {
		return Component{}, fmt.Errorf("layout entry must be an object")
	}
	c := Component{Params: m}
	c.ID = scalarString(m["id"])
	c.Type = strings.TrimSpace(scalarString(m["type"]))
	c.Title = scalarString(m["title"])
	return c, nil
}

// scalarString renders ids given as numbers too ("id": 3).
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

func fromDocument(doc map[string]any) (*Template, error) {
	t := &Template{Title: scalarString(doc["title"])}
	raw, ok := doc["layout"]
	if !ok || raw == nil {
		return t, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("layout must be a list")
	}
	for i, it := range items {
		m, _ := toStringMap(it)
		c, err := componentFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("layout[%d]: %w", i, err)
		}
		t.Layout = append(t.Layout, c)
	}
	return t, nil
}

// toStringMap accepts the map shapes produced by the JSON, YAML and Hjson decoders.
func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
