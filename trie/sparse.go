package trie

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

type nodeKey struct {
	level uint8
	index uint64
}

// SparseMerkleTree is a fixed-depth binary Merkle tree where only nodes that
// differ from the empty subtree at their level are stored. Leaves are level 0,
// the root is level depth.
type SparseMerkleTree struct {
	depth    int
	defaults []fr.Element
	nodes    map[nodeKey]fr.Element
}

type defaultsKey struct {
	depth int
	leaf  [fr.Bytes]byte
}

// defaultsCache shares the empty-subtree hashes between trees of the same
// shape; they are never mutated once built.
var defaultsCache sync.Map

func emptySubtrees(depth int, emptyLeaf fr.Element) []fr.Element {
	key := defaultsKey{depth: depth, leaf: emptyLeaf.Bytes()}
	if v, ok := defaultsCache.Load(key); ok {
		return v.([]fr.Element)
	}
	defaults := make([]fr.Element, depth+1)
	defaults[0] = emptyLeaf
	for l := 1; l <= depth; l++ {
		defaults[l] = computeNode(&defaults[l-1], &defaults[l-1])
	}
	v, _ := defaultsCache.LoadOrStore(key, defaults)
	return v.([]fr.Element)
}

func NewSparseMerkleTree(depth int, emptyLeaf fr.Element) *SparseMerkleTree {
	if depth <= 0 || depth > 63 {
		panic(fmt.Sprintf("sparse merkle tree: unsupported depth %d", depth))
	}
	return &SparseMerkleTree{
		depth:    depth,
		defaults: emptySubtrees(depth, emptyLeaf),
		nodes:    make(map[nodeKey]fr.Element),
	}
}

func (t *SparseMerkleTree) Depth() int {
	return t.depth
}

func (t *SparseMerkleTree) Capacity() uint64 {
	return uint64(1) << t.depth
}

func (t *SparseMerkleTree) node(level int, index uint64) fr.Element {
	if n, ok := t.nodes[nodeKey{uint8(level), index}]; ok {
		return n
	}
	return t.defaults[level]
}

func (t *SparseMerkleTree) setNode(level int, index uint64, v fr.Element) {
	k := nodeKey{uint8(level), index}
	if v.Equal(&t.defaults[level]) {
		delete(t.nodes, k)
		return
	}
	t.nodes[k] = v
}

// SetLeaf writes a leaf and rehashes the path up to the root.
func (t *SparseMerkleTree) SetLeaf(index uint64, leaf fr.Element) {
	if index >= t.Capacity() {
		panic(fmt.Sprintf("sparse merkle tree: leaf %d out of range for depth %d", index, t.depth))
	}
	t.setNode(0, index, leaf)
	cur := leaf
	for level := 0; level < t.depth; level++ {
		sibling := t.node(level, index^1)
		var parent fr.Element
		if index&1 == 0 {
			parent = computeNode(&cur, &sibling)
		} else {
			parent = computeNode(&sibling, &cur)
		}
		index >>= 1
		t.setNode(level+1, index, parent)
		cur = parent
	}
}

func (t *SparseMerkleTree) Leaf(index uint64) fr.Element {
	return t.node(0, index)
}

func (t *SparseMerkleTree) Root() fr.Element {
	return t.node(t.depth, 0)
}

// Path returns the sibling hashes from the leaf level up to just below the root.
func (t *SparseMerkleTree) Path(index uint64) []fr.Element {
	path := make([]fr.Element, t.depth)
	for level := 0; level < t.depth; level++ {
		path[level] = t.node(level, index^1)
		index >>= 1
	}
	return path
}

func (t *SparseMerkleTree) Clone() *SparseMerkleTree {
	c := &SparseMerkleTree{
		depth:    t.depth,
		defaults: t.defaults,
		nodes:    make(map[nodeKey]fr.Element, len(t.nodes)),
	}
	for k, v := range t.nodes {
		c.nodes[k] = v
	}
	return c
}

// RootFromPath folds an audit path over a leaf, as the circuit does.
func RootFromPath(leaf fr.Element, index uint64, path []fr.Element) fr.Element {
	cur := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			cur = computeNode(&cur, &sibling)
		} else {
			cur = computeNode(&sibling, &cur)
		}
		index >>= 1
	}
	return cur
}
