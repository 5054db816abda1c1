// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graph provides the generic directed-graph, spanning-tree,
// nearest-common-ancestor and dominator-tree utilities the rest of the core
// is built on. It knows nothing about Wasm or the IR; it operates on any
// ordered, comparable node key (in practice, CFG block indices).
package graph

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Graph is a directed graph with both forward and reverse adjacency kept in
// sync, so callers never have to build the reverse graph themselves to walk
// predecessors.
type Graph[K constraints.Ordered] struct {
	succ  map[K][]K
	pred  map[K][]K
	nodes map[K]struct{}
}

// New returns an empty graph.
func New[K constraints.Ordered]() *Graph[K] {
	return &Graph[K]{
		succ:  make(map[K][]K),
		pred:  make(map[K][]K),
		nodes: make(map[K]struct{}),
	}
}

// AddNode registers k with no edges, if not already present.
func (g *Graph[K]) AddNode(k K) {
	if _, ok := g.nodes[k]; ok {
		return
	}
	g.nodes[k] = struct{}{}
}

// AddEdge adds a directed edge u -> v, registering both endpoints.
func (g *Graph[K]) AddEdge(u, v K) {
	g.AddNode(u)
	g.AddNode(v)
	g.succ[u] = append(g.succ[u], v)
	g.pred[v] = append(g.pred[v], u)
}

// Has reports whether k was ever added as a node.
func (g *Graph[K]) Has(k K) bool {
	_, ok := g.nodes[k]
	return ok
}

// Succ returns u's out-neighbours in insertion order.
func (g *Graph[K]) Succ(u K) []K { return g.succ[u] }

// Pred returns u's in-neighbours in insertion order.
func (g *Graph[K]) Pred(u K) []K { return g.pred[u] }

// Nodes returns every node, sorted for deterministic iteration.
func (g *Graph[K]) Nodes() []K {
	out := make([]K, 0, len(g.nodes))
	for k := range g.nodes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reversed returns a new graph with every edge flipped; used to compute
// post-dominators by running the forward dominator algorithm on it.
func (g *Graph[K]) Reversed() *Graph[K] {
	r := New[K]()
	for _, n := range g.Nodes() {
		r.AddNode(n)
	}
	for u, vs := range g.succ {
		for _, v := range vs {
			r.AddEdge(v, u)
		}
	}
	return r
}
