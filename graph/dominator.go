package graph

import "golang.org/x/exp/constraints"

// DomTree is a dominator (or, applied to a reversed graph, post-dominator)
// tree: for every reachable node b != root, IDom[b] is its immediate
// dominator; Children is the inverse of IDom, useful for top-down passes.
type DomTree[K constraints.Ordered] struct {
	Root     K
	IDom     map[K]K
	Children map[K][]K
	rpoNum   map[K]int
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *DomTree[K]) Dominates(a, b K) bool {
	for n := b; ; {
		if n == a {
			return true
		}
		parent, ok := t.IDom[n]
		if !ok || parent == n {
			return n == a
		}
		n = parent
	}
}

// BuildDominatorTree computes the dominator tree of g rooted at root using
// the Cooper-Harvey-Kennedy "engineering a fast dominance algorithm": an
// iterative fixpoint over reverse postorder, intersecting immediate
// dominators along the already-computed tree instead of doing full
// bit-vector meets. Passing g.Reversed() and the CFG's exit block computes
// the post-dominator tree instead.
func BuildDominatorTree[K constraints.Ordered](g *Graph[K], root K) *DomTree[K] {
	rpo := ReversePostorder(g, root)
	rpoNum := make(map[K]int, len(rpo))
	for i, n := range rpo {
		rpoNum[n] = i
	}

	idom := make(map[K]K)
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			var newIdom K
			haveNewIdom := false
			for _, p := range g.Pred(b) {
				if _, ok := rpoNum[p]; !ok {
					continue // predecessor unreachable from root
				}
				if _, ok := idom[p]; !ok {
					continue // not processed yet this pass
				}
				if !haveNewIdom {
					newIdom = p
					haveNewIdom = true
					continue
				}
				newIdom = intersect(idom, rpoNum, newIdom, p)
			}
			if !haveNewIdom {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	children := make(map[K][]K)
	for n, p := range idom {
		if n == root {
			continue
		}
		children[p] = append(children[p], n)
	}

	return &DomTree[K]{Root: root, IDom: idom, Children: children, rpoNum: rpoNum}
}

// intersect finds the nearest common ancestor of u and v in the
// partially-built dominator tree, walking the (monotonically increasing in
// rpoNum) immediate-dominator chains in lock step. This is both the core
// step of BuildDominatorTree and the general NCA primitive exposed below.
func intersect[K constraints.Ordered](idom map[K]K, rpoNum map[K]int, u, v K) K {
	for u != v {
		for rpoNum[u] > rpoNum[v] {
			u = idom[u]
		}
		for rpoNum[v] > rpoNum[u] {
			v = idom[v]
		}
	}
	return u
}

// NCA returns the nearest common ancestor of a and b in t.
func (t *DomTree[K]) NCA(a, b K) K {
	return intersect(t.IDom, t.rpoNum, a, b)
}
