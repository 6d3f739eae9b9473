package schema

import (
	"strings"

	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// FuzzyCutoff is the minimum normalized Levenshtein similarity for a fuzzy match.
const FuzzyCutoff = 0.6

// Mapping binds logical keys to dataset column names. A key is either the desired
// name itself (exact match) or "{scope}.{field}" (fuzzy, role or first-column fallback).
type Mapping map[string]string

// Resolve looks up the column for a component field: the desired name first, then the scoped key.
func (m Mapping) Resolve(c template.Component, field string) (string, bool) {
	desired, ok := c.Field(field)
	if !ok {
		return "", false
	}
	if col, ok := m[desired]; ok {
		return col, true
	}
	col, ok := m[c.ScopedKey(field)]
	return col, ok
}

// MapTemplateFields resolves every string-valued field of every component against the
// columns in roles. Steps, first hit wins: exact case-insensitive name, fuzzy name,
// role implied by the field name, first column.
func MapTemplateFields(tpl *template.Template, roles Roles) Mapping {
	m := Mapping{}
	if tpl == nil {
		return m
	}
	cols := roles.Names()
	lower := make([]string, len(cols))
	for i, c := range cols {
		lower[i] = strings.ToLower(c)
	}
	for _, comp := range tpl.Layout {
		for _, field := range comp.StringFields() {
			desired := comp.Params[field].(string)
			want := strings.ToLower(desired)
			if i := indexOf(lower, want); i >= 0 {
				m[desired] = cols[i]
				continue
			}
			scoped := comp.ScopedKey(field)
			if i := closest(want, lower); i >= 0 {
				m[scoped] = cols[i]
				continue
			}
			if role, ok := RoleHint(field); ok {
				if col, ok := roles.First(role); ok {
					m[scoped] = col
					continue
				}
			}
			if _, bound := m[scoped]; !bound && len(cols) > 0 {
				m[scoped] = cols[0]
			}
		}
	}
	return m
}

// RoleHint derives the wanted role from a field name.
func RoleHint(field string) (Role, bool) {
	f := strings.ToLower(field)
	switch {
	case strings.Contains(f, "date") || strings.Contains(f, "time"):
		return RoleDatetime, true
	case strings.Contains(f, "value") || strings.Contains(f, "amount") || strings.Contains(f, "price"):
		return RoleNumeric, true
	case strings.Contains(f, "group") || strings.Contains(f, "category"):
		return RoleCategorical, true
	case strings.Contains(f, "id"):
		return RoleID, true
	}
	return "", false
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// closest returns the index of the most similar candidate at or above FuzzyCutoff; ties keep the earliest.
func closest(want string, candidates []string) int {
	lev := metrics.NewLevenshtein()
	best, bestScore := -1, FuzzyCutoff
	for i, c := range candidates {
		score := strutil.Similarity(want, c, lev)
		if score > bestScore || (best < 0 && score >= bestScore) {
			best, bestScore = i, score
		}
	}
	return best
}

// Similarity exposes the fuzzy measure used by the mapper.
func Similarity(a, b string) float64 {
	return strutil.Similarity(strings.ToLower(a), strings.ToLower(b), metrics.NewLevenshtein())
}
