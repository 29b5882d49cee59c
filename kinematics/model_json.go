package kinematics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gopkg.in/yaml.v3"

	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/spatialmath"
)

// ModelConfig represents all supported fields in a JSON or YAML model file.
type ModelConfig struct {
	Name string `json:"name" yaml:"name"`
	// MaxLinks is the capacity of the built tree. Zero means exactly the number of links.
	MaxLinks int          `json:"max_links,omitempty" yaml:"max_links,omitempty"`
	Gravity  *r3.Vector   `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	Links    []LinkConfig `json:"links" yaml:"links"`
}

// LinkConfig describes one link and the joint attaching it to its parent. The root has no parent.
type LinkConfig struct {
	ID      string              `json:"id" yaml:"id"`
	Parent  string              `json:"parent,omitempty" yaml:"parent,omitempty"`
	Mass    float64             `json:"mass,omitempty" yaml:"mass,omitempty"`
	COM     r3.Vector           `json:"com" yaml:"com"`
	Inertia spatialmath.Inertia `json:"inertia" yaml:"inertia"`
	Axis    r3.Vector           `json:"axis" yaml:"axis"`
	Offset  r3.Vector           `json:"offset" yaml:"offset"`
	Limit   *Limit              `json:"limit,omitempty" yaml:"limit,omitempty"`
}

func (lc *LinkConfig) toLink() Link {
	l := Link{
		Name:    lc.ID,
		Mass:    lc.Mass,
		COM:     lc.COM,
		Inertia: lc.Inertia,
		Axis:    lc.Axis,
		Offset:  lc.Offset,
	}
	if lc.Limit != nil {
		l.Limit = *lc.Limit
	}
	return l
}

// UnmarshalModelJSON will parse the given JSON data into a kinematic tree.
func UnmarshalModelJSON(jsonData []byte, logger logging.Logger) (*Tree, error) {
	// empty data probably means that the caller has no model information
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}
	cfg := &ModelConfig{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig(logger)
}

// UnmarshalModelYAML will parse the given YAML data into a kinematic tree.
func UnmarshalModelYAML(yamlData []byte, logger logging.Logger) (*Tree, error) {
	if len(yamlData) == 0 {
		return nil, ErrNoModelInformation
	}
	cfg := &ModelConfig{}
	if err := yaml.Unmarshal(yamlData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal yaml file")
	}
	return cfg.ParseConfig(logger)
}

// ParseModelFile reads a JSON, YAML or URDF model, chosen by file extension, and builds its tree.
func ParseModelFile(filename string, logger logging.Logger) (*Tree, error) {
	//nolint:gosec
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model file")
	}
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return UnmarshalModelJSON(data, logger)
	case ".yaml", ".yml":
		return UnmarshalModelYAML(data, logger)
	case ".urdf", ".xml":
		cfg, err := ConvertURDFToConfig(data)
		if err != nil {
			return nil, err
		}
		return cfg.ParseConfig(logger)
	default:
		return nil, errors.Errorf("unsupported model file extension %q, supported are .json, .yaml, .yml, .urdf and .xml", ext)
	}
}

// ParseConfig checks the parent relation of the configured links and builds the tree. Siblings keep the order
// they are listed in.
func (cfg *ModelConfig) ParseConfig(logger logging.Logger) (*Tree, error) {
	if len(cfg.Links) == 0 {
		return nil, ErrNoModelInformation
	}
	if logger == nil {
		logger = logging.Global()
	}
	index := make(map[string]int, len(cfg.Links))
	for i, lc := range cfg.Links {
		if lc.ID == "" {
			return nil, errors.Errorf("link %d has no id", i)
		}
		if _, ok := index[lc.ID]; ok {
			return nil, NewDuplicateLinkNameError(lc.ID)
		}
		index[lc.ID] = i
	}

	root := -1
	children := make([][]int, len(cfg.Links))
	g := simple.NewDirectedGraph()
	for i := range cfg.Links {
		g.AddNode(simple.Node(i))
	}
	for i, lc := range cfg.Links {
		if lc.Parent == "" {
			if root >= 0 {
				return nil, fmt.Errorf("%w, have %q and %q", ErrNeedOneRoot, cfg.Links[root].ID, lc.ID)
			}
			root = i
			continue
		}
		p, ok := index[lc.Parent]
		if !ok {
			return nil, NewParentNameNotFoundError(lc.ID, lc.Parent)
		}
		if p == i {
			return nil, errors.Wrapf(ErrCircularReference, "link %q is its own parent", lc.ID)
		}
		g.SetEdge(g.NewEdge(simple.Node(p), simple.Node(i)))
		children[p] = append(children[p], i)
	}
	if _, err := topo.Sort(g); err != nil {
		return nil, ErrCircularReference
	}
	if root < 0 {
		return nil, ErrNeedOneRoot
	}

	capacity := cfg.MaxLinks
	if capacity == 0 {
		capacity = len(cfg.Links)
	}
	if capacity < len(cfg.Links) {
		return nil, errors.Wrapf(ErrCapacityExceeded, "model %q has %d links but max_links is %d", cfg.Name, len(cfg.Links), capacity)
	}

	tree, err := NewTree(capacity, cfg.Links[root].toLink(), logger)
	if err != nil {
		return nil, err
	}
	// ids are handed out parent first, siblings in listed order
	ids := make([]int, len(cfg.Links))
	stack := []int{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range children[cur] {
			id, err := tree.AddLink(ids[cur], cfg.Links[c].toLink())
			if err != nil {
				return nil, errors.Wrapf(err, "cannot add link %q", cfg.Links[c].ID)
			}
			ids[c] = id
		}
		for i := len(children[cur]) - 1; i >= 0; i-- {
			stack = append(stack, children[cur][i])
		}
	}
	if cfg.Gravity != nil {
		tree.SetGravity(*cfg.Gravity)
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	logger.Debugw("parsed model", "name", cfg.Name, "links", tree.Len(), "capacity", tree.Cap())
	return tree, nil
}

// ModelConfig returns the configuration that rebuilds this tree. Unnamed links are named link_<id>, and a
// generated or repeated name that is already taken gets a _<n> suffix. Gravity is written only when it was set
// with SetGravity and no base motion replaced it since.
func (t *Tree) ModelConfig(name string) *ModelConfig {
	cfg := &ModelConfig{Name: name, MaxLinks: t.Cap(), Links: make([]LinkConfig, 0, len(t.links))}
	names := t.uniqueNames()
	if t.hasGravity && t.links[0].Accel == t.gravity.Mul(-1) {
		g := t.gravity
		cfg.Gravity = &g
	}
	for i := range t.links {
		l := &t.links[i]
		lc := LinkConfig{
			ID:      names[i],
			Mass:    l.Mass,
			COM:     l.COM,
			Inertia: l.Inertia,
			Axis:    l.Axis,
			Offset:  l.Offset,
		}
		if i != 0 {
			lc.Parent = names[l.parent]
		}
		if !l.Limit.IsZero() {
			lim := l.Limit
			lc.Limit = &lim
		}
		cfg.Links = append(cfg.Links, lc)
	}
	return cfg
}

// uniqueNames returns a distinct id for every link. Given names are reserved before generated ones.
func (t *Tree) uniqueNames() []string {
	names := make([]string, len(t.links))
	taken := make(map[string]bool, len(t.links))
	for i := range t.links {
		if n := t.links[i].Name; n != "" && !taken[n] {
			names[i] = n
			taken[n] = true
		}
	}
	for i := range t.links {
		if names[i] != "" {
			continue
		}
		base := displayName(&t.links[i])
		candidate := base
		for k := 1; taken[candidate]; k++ {
			candidate = fmt.Sprintf("%s_%d", base, k)
		}
		names[i] = candidate
		taken[candidate] = true
	}
	return names
}
