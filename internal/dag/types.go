package dag

// Graph is a collection of path vertices and the dependencies between them.
type Graph struct {
	// nodes stores every vertex, keyed by its path.
	nodes map[string]*node
	// order records vertex insertion order so traversals are deterministic.
	order []string
}

// node is a single vertex. It is un-exported so callers interact with the
// graph through paths only.
type node struct {
	id string
	// deps holds the vertices this one is built from (predecessors).
	deps map[string]*node
	// dependents holds the vertices built from this one (successors).
	dependents map[string]*node
}
