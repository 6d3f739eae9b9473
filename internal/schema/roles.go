package schema

import (
	"encoding/json"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
)

// Role is the semantic class of a column.
type Role string

const (
	RoleDatetime    Role = "datetime"
	RoleNumeric     Role = "numeric"
	RoleCategorical Role = "categorical"
	RoleText        Role = "text"
	// RoleID is requested by "id" fields but never inferred, so it never matches.
	RoleID Role = "id"
)

// categoricalRatio: a non-numeric column is categorical when its distinct count is below this share of rows.
const categoricalRatio = 0.5

// ColumnRole pairs a column with its role.
type ColumnRole struct {
	Column string `json:"column"`
	Role   Role   `json:"role"`
}

// Roles maps column names to roles and keeps dataset column order.
type Roles struct {
	order []string
	roles map[string]Role
}

// NewRoles builds Roles from ordered pairs.
func NewRoles(pairs ...ColumnRole) Roles {
	r := Roles{roles: make(map[string]Role, len(pairs))}
	for _, p := range pairs {
		if _, dup := r.roles[p.Column]; !dup {
			r.order = append(r.order, p.Column)
		}
		r.roles[p.Column] = p.Role
	}
	return r
}

// InferRoles classifies every column of ds.
func InferRoles(ds *dataset.Dataset) Roles {
	pairs := make([]ColumnRole, 0, ds.NumColumns())
	for i := 0; i < ds.NumColumns(); i++ {
		c := ds.ColumnAt(i)
		pairs = append(pairs, ColumnRole{Column: c.Name, Role: roleOf(c, ds.Rows())})
	}
	return NewRoles(pairs...)
}

func roleOf(c *dataset.Column, rows int) Role {
	switch c.Kind {
	case dataset.KindDatetime:
		return RoleDatetime
	case dataset.KindNumeric:
		return RoleNumeric
	}
	if float64(c.Distinct()) < categoricalRatio*float64(rows) {
		return RoleCategorical
	}
	return RoleText
}

// Names returns column names in dataset order.
func (r Roles) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of columns.
func (r Roles) Len() int { return len(r.order) }

// Get returns the role of a column.
func (r Roles) Get(column string) (Role, bool) {
	role, ok := r.roles[column]
	return role, ok
}

// First returns the first column, in dataset order, holding role.
func (r Roles) First(role Role) (string, bool) {
	for _, n := range r.order {
		if r.roles[n] == role {
			return n, true
		}
	}
	return "", false
}

// Pairs returns the ordered (column, role) list.
func (r Roles) Pairs() []ColumnRole {
	out := make([]ColumnRole, len(r.order))
	for i, n := range r.order {
		out[i] = ColumnRole{Column: n, Role: r.roles[n]}
	}
	return out
}

// MarshalJSON encodes the ordered pair list.
func (r Roles) MarshalJSON() ([]byte, error) { return json.Marshal(r.Pairs()) }

// UnmarshalJSON decodes the ordered pair list.
func (r *Roles) UnmarshalJSON(b []byte) error {
	var pairs []ColumnRole
	if err := json.Unmarshal(b, &pairs); err != nil {
		return err
	}
	*r = NewRoles(pairs...)
	return nil
}
