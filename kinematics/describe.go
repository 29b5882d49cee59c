package kinematics

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"

	"go.viam.com/rkd/utils"
)

// String prints out a table of each link in the tree, in id order, with columns of name, parent, joint offset,
// axis, mass and joint limit.
func (t *Tree) String() string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"#", "Name", "Parent", "Offset", "Axis", "Mass", "Limit"})
	for i := range t.links {
		l := &t.links[i]
		parent := ""
		if !l.IsRoot() {
			parent = displayName(&t.links[l.parent])
		}
		limit := ""
		if !l.IsRoot() {
			limit = "none"
			if !l.Limit.IsZero() {
				limit = fmt.Sprintf("[%.1f, %.1f] deg", utils.RadToDeg(l.Limit.Min), utils.RadToDeg(l.Limit.Max))
			}
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("%d", l.id),
			displayName(l),
			parent,
			formatVector(l.Offset),
			formatVector(l.Axis),
			fmt.Sprintf("%.3f", l.Mass),
			limit,
		})
	}
	return tw.Render()
}

func displayName(l *Link) string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("link_%d", l.id)
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", v.X, v.Y, v.Z)
}

// ModelConfigSchema returns the JSON schema of model files.
func ModelConfigSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	return r.Reflect(&ModelConfig{})
}
