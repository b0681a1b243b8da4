// Package ensemble implements the "tree_ensemble" artifact kind: additive
// boosted regression trees with a logistic link, in the layout of an XGBoost
// JSON tree dump.
package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"fraud-gate/pkg/model"
)

// Kind is the artifact kind handled by this package.
const Kind = "tree_ensemble"

func init() {
	model.Register(Kind, decode)
}

// Node is one node of a dumped tree. Split nodes send x[Split] < Threshold to
// Yes, everything else to No, and NaN to Missing (Yes when unset).
type Node struct {
	ID        int      `json:"nodeid"`
	Split     int      `json:"split"`
	Threshold float64  `json:"split_condition"`
	Yes       int      `json:"yes"`
	No        int      `json:"no"`
	Missing   *int     `json:"missing,omitempty"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

// Params is the serialized form of the "model" field.
type Params struct {
	// BaseScore is the prior P(fraud); its logit seeds the margin. Zero means 0.5.
	BaseScore float64  `json:"base_score"`
	Trees     [][]Node `json:"trees"`
}

// node is the compiled form: children are slice indexes.
type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	yes       int
	no        int
	missing   int
}

type tree []node

// Classifier sums tree margins and maps the total through a sigmoid.
type Classifier struct {
	baseMargin  float64
	trees       []tree
	numFeatures int
}

// New compiles params for rows of numFeatures values.
func New(params Params, numFeatures int) (*Classifier, error) {
	if numFeatures <= 0 {
		return nil, errors.New("ensemble: numFeatures must be positive")
	}
	if len(params.Trees) == 0 {
		return nil, errors.New("ensemble: no trees")
	}

	base := params.BaseScore
	if base == 0 {
		base = 0.5
	}
	if !(base > 0 && base < 1) {
		return nil, fmt.Errorf("ensemble: base_score %v outside (0,1)", params.BaseScore)
	}

	c := &Classifier{
		baseMargin:  math.Log(base / (1 - base)),
		trees:       make([]tree, len(params.Trees)),
		numFeatures: numFeatures,
	}
	for i, nodes := range params.Trees {
		t, err := compile(nodes, numFeatures)
		if err != nil {
			return nil, fmt.Errorf("ensemble: tree %d: %w", i, err)
		}
		c.trees[i] = t
	}
	return c, nil
}

func decode(raw json.RawMessage, numFeatures int) (model.Classifier, error) {
	var params Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return New(params, numFeatures)
}

// compile maps node ids to slice indexes, with the root (id 0) first, and
// rejects dangling references and cycles.
func compile(nodes []Node, numFeatures int) (tree, error) {
	if len(nodes) == 0 {
		return nil, errors.New("empty tree")
	}

	index := make(map[int]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		index[n.ID] = i
	}
	if _, ok := index[0]; !ok {
		return nil, errors.New("no root node (id 0)")
	}

	// Reorder so that the root sits at index 0.
	order := make([]int, 0, len(nodes))
	pos := make(map[int]int, len(nodes))
	order = append(order, index[0])
	pos[0] = 0
	for _, n := range nodes {
		if n.ID != 0 {
			pos[n.ID] = len(order)
			order = append(order, index[n.ID])
		}
	}

	t := make(tree, len(nodes))
	for slot, src := range order {
		n := nodes[src]
		if n.Leaf != nil {
			if !finite(*n.Leaf) {
				return nil, fmt.Errorf("node %d: leaf is not finite", n.ID)
			}
			t[slot] = node{leaf: true, value: *n.Leaf}
			continue
		}

		if n.Split < 0 || n.Split >= numFeatures {
			return nil, fmt.Errorf("node %d: split feature %d out of range", n.ID, n.Split)
		}
		if math.IsNaN(n.Threshold) {
			return nil, fmt.Errorf("node %d: threshold is NaN", n.ID)
		}
		missing := n.Yes
		if n.Missing != nil {
			missing = *n.Missing
		}

		children := [3]int{n.Yes, n.No, missing}
		var resolved [3]int
		for k, id := range children {
			p, ok := pos[id]
			if !ok {
				return nil, fmt.Errorf("node %d: child %d does not exist", n.ID, id)
			}
			if id == 0 {
				return nil, fmt.Errorf("node %d: child points at root", n.ID)
			}
			resolved[k] = p
		}
		t[slot] = node{
			feature:   n.Split,
			threshold: n.Threshold,
			yes:       resolved[0],
			no:        resolved[1],
			missing:   resolved[2],
		}
	}

	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkAcyclic runs a three-colour DFS from the root.
func (t tree) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	color := make([]uint8, len(t))

	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case visiting:
			return errors.New("tree contains a cycle")
		case done:
			return nil
		}
		color[i] = visiting
		if n := t[i]; !n.leaf {
			for _, child := range [3]int{n.yes, n.no, n.missing} {
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		color[i] = done
		return nil
	}
	return visit(0)
}

func (t tree) margin(row []float64) float64 {
	i := 0
	for {
		n := t[i]
		if n.leaf {
			return n.value
		}
		x := row[n.feature]
		switch {
		case math.IsNaN(x):
			i = n.missing
		case x < n.threshold:
			i = n.yes
		default:
			i = n.no
		}
	}
}

// NumFeatures implements model.Classifier.
func (c *Classifier) NumFeatures() int {
	return c.numFeatures
}

// NumTrees returns the number of trees in the ensemble.
func (c *Classifier) NumTrees() int {
	return len(c.trees)
}

// PredictProba implements model.Classifier.
func (c *Classifier) PredictProba(row []float64) ([]float64, error) {
	if len(row) != c.numFeatures {
		return nil, fmt.Errorf("ensemble: row has %d features, want %d", len(row), c.numFeatures)
	}

	z := c.baseMargin
	for _, t := range c.trees {
		z += t.margin(row)
	}

	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
