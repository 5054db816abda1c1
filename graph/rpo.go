package graph

import "golang.org/x/exp/constraints"

// ReversePostorder walks g from root with an explicit work stack (no Go-level
// recursion, per the module's design notes: Wasm functions can nest blocks
// thousands deep) and returns nodes in reverse postorder. Unreachable nodes
// are omitted.
func ReversePostorder[K constraints.Ordered](g *Graph[K], root K) []K {
	type frame struct {
		node    K
		succIdx int
	}
	visited := make(map[K]bool)
	var post []K
	stack := []frame{{node: root}}
	visited[root] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.Succ(top.node)
		if top.succIdx < len(succs) {
			next := succs[top.succIdx]
			top.succIdx++
			if !visited[next] {
				visited[next] = true
				stack = append(stack, frame{node: next})
			}
			continue
		}
		post = append(post, top.node)
		stack = stack[:len(stack)-1]
	}

	// reverse postorder
	rpo := make([]K, len(post))
	for i, n := range post {
		rpo[len(post)-1-i] = n
	}
	return rpo
}
