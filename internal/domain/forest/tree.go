package forest

import (
	"fmt"
	"math/rand"
	"sort"
)

// Node is one node of a fitted tree. Leaves carry a class distribution;
// internal nodes send x[Feature] <= Threshold to Left, otherwise Right.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

func (n *Node) isLeaf() bool { return n.Value != nil }

// Tree is a fitted decision tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.isLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// check verifies that every path from the root ends in a leaf with one
// probability per class. Children always come after their parent, which
// also rules out cycles.
func (t *Tree) check(nFeatures, nClasses int) error {
	if t == nil || len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrMalformedTree)
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.isLeaf() {
			if len(n.Value) != nClasses {
				return fmt.Errorf("%w: node %d has %d class probabilities, want %d",
					ErrMalformedTree, i, len(n.Value), nClasses)
			}
			continue
		}
		switch {
		case n.Feature < 0 || n.Feature >= nFeatures:
			return fmt.Errorf("%w: node %d splits on feature %d of %d", ErrMalformedTree, i, n.Feature, nFeatures)
		case n.Left <= i || n.Left >= len(t.Nodes):
			return fmt.Errorf("%w: node %d has left child %d", ErrMalformedTree, i, n.Left)
		case n.Right <= i || n.Right >= len(t.Nodes):
			return fmt.Errorf("%w: node %d has right child %d", ErrMalformedTree, i, n.Right)
		}
	}
	return nil
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.isLeaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// treeBuilder grows one tree on a bootstrap sample. Sample weights are the
// bootstrap multiplicity times the class weight.
type treeBuilder struct {
	x               [][]float64
	y               []int
	nClasses        int
	classWeight     []float64
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	rng             *rand.Rand

	weight     []float64
	nodes      []Node
	importance []float64
}

func (b *treeBuilder) build() *Tree {
	n := len(b.x)
	b.weight = make([]float64, n)
	for i := 0; i < n; i++ {
		j := b.rng.Intn(n)
		b.weight[j] += b.classWeight[b.y[j]]
	}
	idx := make([]int, 0, n)
	for i, w := range b.weight {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	dist, total := b.distribution(idx)
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	if depth >= b.maxDepth || len(idx) < b.minSamplesSplit || pure(dist) {
		b.nodes[self] = leafNode(dist, total)
		return self
	}

	sp, ok := b.bestSplit(idx, dist, total)
	if !ok {
		b.nodes[self] = leafNode(dist, total)
		return self
	}
	b.importance[sp.feature] += sp.gain

	var left, right []int
	for _, i := range idx {
		if b.x[i][sp.feature] <= sp.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: sp.feature, Threshold: sp.threshold, Left: l, Right: r}
	return self
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans features in random order until maxFeatures non-constant
// ones have been evaluated.
func (b *treeBuilder) bestSplit(idx []int, dist []float64, total float64) (split, bool) {
	parent := total * gini(dist, total)
	best := split{gain: 0}
	found := false
	tried := 0

	order := make([]int, len(idx))
	for _, f := range b.rng.Perm(len(b.x[0])) {
		if tried >= b.maxFeatures {
			break
		}
		copy(order, idx)
		sort.SliceStable(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })
		if b.x[order[0]][f] == b.x[order[len(order)-1]][f] {
			continue
		}
		tried++

		left := make([]float64, b.nClasses)
		right := append([]float64(nil), dist...)
		wl, wr := 0.0, total
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			w := b.weight[i]
			left[b.y[i]] += w
			right[b.y[i]] -= w
			wl += w
			wr -= w
			v, next := b.x[i][f], b.x[order[k+1]][f]
			if v == next {
				continue
			}
			gain := parent - wl*gini(left, wl) - wr*gini(right, wr)
			if gain > best.gain+1e-12 {
				best = split{feature: f, threshold: (v + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (b *treeBuilder) distribution(idx []int) ([]float64, float64) {
	dist := make([]float64, b.nClasses)
	total := 0.0
	for _, i := range idx {
		dist[b.y[i]] += b.weight[i]
		total += b.weight[i]
	}
	return dist, total
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, w := range dist {
		p := w / total
		sum += p * p
	}
	return 1 - sum
}

func pure(dist []float64) bool {
	nonzero := 0
	for _, w := range dist {
		if w > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

func leafNode(dist []float64, total float64) Node {
	v := make([]float64, len(dist))
	if total > 0 {
		for c, w := range dist {
			v[c] = w / total
		}
	}
	return Node{Value: v}
}
