package graph

import "golang.org/x/exp/constraints"

// SpanningTree runs the same iterative DFS as ReversePostorder but returns
// the DFS parent of every reachable node instead of the postorder. The root
// has no entry. Nothing else in this module calls it.
func SpanningTree[K constraints.Ordered](g *Graph[K], root K) map[K]K {
	type frame struct {
		node    K
		succIdx int
	}
	parent := make(map[K]K)
	visited := map[K]bool{root: true}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.Succ(top.node)
		if top.succIdx < len(succs) {
			next := succs[top.succIdx]
			top.succIdx++
			if !visited[next] {
				visited[next] = true
				parent[next] = top.node
				stack = append(stack, frame{node: next})
			}
			continue
		}
		stack = stack[:len(stack)-1]
	}
	return parent
}
