// Package thread rebuilds reply trees from the flat post list the forum
// returns.
package thread

import (
	"sort"

	"roundtable/internal/forum"
)

// Node is one post in render order.
type Node struct {
	Post  forum.Post
	Depth int
	// Parent is nil for roots, including posts whose parent is missing or
	// that were cut out of a reference cycle.
	Parent *forum.Post
}

type Forest struct {
	Roots    []forum.Post
	Children map[string][]forum.Post
	Order    []Node
}

// Build orders posts so that every post follows its parent and siblings are
// ascending by created_at, ties kept in input order. Posts whose parent is
// absent become roots. Reference cycles are broken by demoting the earliest
// member of the cycle to a root, so the result is always finite.
func Build(posts []forum.Post) Forest {
	forest := Forest{Children: map[string][]forum.Post{}}
	if len(posts) == 0 {
		return forest
	}

	items := dedupe(posts)
	times := make([]int64, len(items))
	for i, post := range items {
		times[i] = post.CreatedTime().UnixNano()
	}
	sorted := make([]int, len(items))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return times[sorted[a]] < times[sorted[b]]
	})
	rank := make([]int, len(items))
	for r, idx := range sorted {
		rank[idx] = r
	}

	index := make(map[string]int, len(items))
	for i, post := range items {
		if post.ID != "" {
			index[post.ID] = i
		}
	}

	parent := make([]int, len(items))
	for i, post := range items {
		parent[i] = -1
		pid := post.ParentID()
		if pid == "" || pid == post.ID {
			continue
		}
		if p, ok := index[pid]; ok {
			parent[i] = p
		}
	}
	breakCycles(parent, sorted, rank)

	children := make([][]int, len(items))
	roots := make([]int, 0)
	for _, idx := range sorted {
		if parent[idx] < 0 {
			roots = append(roots, idx)
			continue
		}
		children[parent[idx]] = append(children[parent[idx]], idx)
	}

	for _, idx := range roots {
		forest.Roots = append(forest.Roots, items[idx])
	}
	for idx, kids := range children {
		if len(kids) == 0 {
			continue
		}
		list := make([]forum.Post, 0, len(kids))
		for _, kid := range kids {
			list = append(list, items[kid])
		}
		forest.Children[items[idx].ID] = list
	}

	type frame struct {
		idx   int
		depth int
	}
	visited := make([]bool, len(items))
	forest.Order = make([]Node, 0, len(items))
	for _, root := range roots {
		stack := []frame{{idx: root}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[top.idx] {
				continue
			}
			visited[top.idx] = true
			node := Node{Post: items[top.idx], Depth: top.depth}
			if p := parent[top.idx]; p >= 0 {
				parentPost := items[p]
				node.Parent = &parentPost
			}
			forest.Order = append(forest.Order, node)
			kids := children[top.idx]
			for i := len(kids) - 1; i >= 0; i-- {
				if !visited[kids[i]] {
					stack = append(stack, frame{idx: kids[i], depth: top.depth + 1})
				}
			}
		}
	}
	return forest
}

// breakCycles walks each parent chain once. When a chain loops back onto
// itself, the member of the loop that sorts first loses its parent.
func breakCycles(parent []int, sorted []int, rank []int) {
	const (
		unseen = iota
		onPath
		done
	)
	state := make([]int, len(parent))
	for _, start := range sorted {
		if state[start] != unseen {
			continue
		}
		path := []int{}
		cur := start
		for cur >= 0 && state[cur] == unseen {
			state[cur] = onPath
			path = append(path, cur)
			cur = parent[cur]
		}
		if cur >= 0 && state[cur] == onPath {
			demote := cur
			for i := len(path) - 1; i >= 0; i-- {
				member := path[i]
				if rank[member] < rank[demote] {
					demote = member
				}
				if member == cur {
					break
				}
			}
			parent[demote] = -1
		}
		for _, idx := range path {
			state[idx] = done
		}
	}
}

// dedupe keeps the first post for each id. Posts without an id are kept.
func dedupe(posts []forum.Post) []forum.Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]forum.Post, 0, len(posts))
	for _, post := range posts {
		if post.ID != "" {
			if _, ok := seen[post.ID]; ok {
				continue
			}
			seen[post.ID] = struct{}{}
		}
		out = append(out, post)
	}
	return out
}

// Depths is a convenience for callers that only need ids and depths.
func (f Forest) Depths() map[string]int {
	out := make(map[string]int, len(f.Order))
	for _, node := range f.Order {
		out[node.Post.ID] = node.Depth
	}
	return out
}
