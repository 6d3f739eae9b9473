package template

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v3"
)

// DefaultName is the built-in template used when none is configured.
const DefaultName = "sample_dashboard"

//go:embed templates/*.json
var builtin embed.FS

// ErrNotFound is returned when a named template does not exist.
var ErrNotFound = errors.New("template not found")

// Parse decodes a template. format is "json", "yaml" or "hjson"; an empty format means json.
// JSON that fails to parse is repaired once (trailing commas, single quotes) before giving up.
func Parse(data []byte, format string) (*Template, error) {
	var doc map[string]any
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			repaired, rerr := jsonrepair.RepairJSON(string(data))
			if rerr != nil {
				return nil, fmt.Errorf("parse json template: %w", err)
			}
			doc = nil
			if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
				return nil, fmt.Errorf("parse json template: %w", err)
			}
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml template: %w", err)
		}
	case "hjson":
		var v any
		if err := hjson.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse hjson template: %w", err)
		}
		m, ok := toStringMap(v)
		if !ok {
			return nil, fmt.Errorf("parse hjson template: top level must be an object")
		}
		doc = m
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}
	if doc == nil {
		return nil, fmt.Errorf("template must be an object")
	}
	return fromDocument(doc)
}

// Marshal encodes t in one of the formats Parse reads.
func Marshal(t *Template, format string) ([]byte, error) {
	layout := make([]any, len(t.Layout))
	for i, c := range t.Layout {
		layout[i] = c.flat()
	}
	doc := map[string]any{"title": t.Title, "layout": layout}
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "json":
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json template: %w", err)
		}
		return append(b, '\n'), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml template: %w", err)
		}
		return b, nil
	case "hjson":
		b, err := hjson.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal hjson template: %w", err)
		}
		return append(b, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}
}

// IsTemplateFile reports whether a path has a template extension.
func IsTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".hjson":
		return true
	}
	return false
}

// LoadFile reads a template from disk; the format follows the extension.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	t, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return t, nil
}

// Default returns the built-in sample dashboard.
func Default() *Template {
	data, err := builtin.ReadFile("templates/" + DefaultName + ".json")
	if err != nil {
		return &Template{Name: DefaultName, Title: "Generated Dashboard"}
	}
	t, err := Parse(data, "json")
	if err != nil {
		return &Template{Name: DefaultName, Title: "Generated Dashboard"}
	}
	t.Name = DefaultName
	return t
}

// DefaultJSON returns the raw built-in template, used to seed a templates directory.
func DefaultJSON() []byte {
	data, _ := builtin.ReadFile("templates/" + DefaultName + ".json")
	return data
}
