// Package depgraph implements the dependency engine: it builds a graph
// over a set of recipes from their declared depends names and produces a
// topological build order via Kahn's algorithm, breaking ties by insertion
// order for determinism. It never refuses to proceed: nodes left in a cycle
// after the main loop are appended in their remaining (arbitrary) order
// rather than blocking a world rebuild, per the reorder/blocker style of
// a "prefer best-effort progress" stance rather than refusing the batch.
package depgraph

import "github.com/forgepm/forge/internal/log"

// Node is one resolvable unit: a package name with the dependency names its
// recipe declares. Edges carry name only; version disambiguation happens
// before nodes reach the graph (first match under the repository root).
type Node struct {
	Name    string
	Depends []string
}

// Order computes a topological ordering over nodes such that every node
// appears after all dependencies that are present in the input set.
// Dependencies naming a node absent from the input are tolerated silently:
// they simply contribute no edge. Remaining cyclic nodes are appended in
// their original relative order, with a single warning logged.
func Order(nodes []Node, logger log.Logger) []Node {
	if logger == nil {
		logger = log.Default()
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.Name] = i
	}

	// inDegree[i] counts edges from a dependency (within the input set) to node i.
	inDegree := make([]int, len(nodes))
	// dependents[j] lists the indices of nodes that depend on node j.
	dependents := make([][]int, len(nodes))

	for i, n := range nodes {
		seen := make(map[string]bool)
		for _, dep := range n.Depends {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			j, ok := index[dep]
			if !ok || j == i {
				continue
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i := range nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	visited := make([]bool, len(nodes))
	var order []Node
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if visited[i] {
			continue
		}
		visited[i] = true
		order = append(order, nodes[i])

		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) < len(nodes) {
		logger.Warn("dependency cycle detected, appending remaining nodes in arbitrary order",
			"resolved", len(order), "total", len(nodes))
		for i, n := range nodes {
			if !visited[i] {
				order = append(order, n)
			}
		}
	}

	return order
}
