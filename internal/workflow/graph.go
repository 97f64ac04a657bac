package workflow

import (
	"errors"

	"github.com/dominikbraun/graph"
)

// importGraph records, per request, which file imports which.
type importGraph struct {
	g graph.Graph[string, string]
}

func newImportGraph(root string) *importGraph {
	g := graph.New(graph.StringHash, graph.Directed())
	_ = g.AddVertex(root)
	return &importGraph{g: g}
}

// add inserts file and reports whether it was new.
func (ig *importGraph) add(file string) (bool, error) {
	err := ig.g.AddVertex(file)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, graph.ErrVertexAlreadyExists):
		return false, nil
	}
	return false, err
}

// link records that from imports to.
func (ig *importGraph) link(from, to string) error {
	if _, err := ig.add(from); err != nil {
		return err
	}
	if _, err := ig.add(to); err != nil {
		return err
	}
	if err := ig.g.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return err
	}
	return nil
}

// reachable returns every file start imports, directly or not, in
// breadth-first order. start itself is not included.
func (ig *importGraph) reachable(start string) ([]string, error) {
	var out []string
	err := graph.BFS(ig.g, start, func(file string) bool {
		if file != start {
			out = append(out, file)
		}
		return false
	})
	return out, err
}

// size returns the number of files and imports recorded.
func (ig *importGraph) size() (files, imports int) {
	files, _ = ig.g.Order()
	imports, _ = ig.g.Size()
	return files, imports
}

// linkCached records the imports of file, and of the files they reach,
// from cached transform results. The request skipped processing these
// files, so processImports never saw their imports.
func (q *request) linkCached(file string) error {
	queue := []string{file}
	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]
		res, ok := q.run.codes.Widest(from)
		if !ok {
			continue
		}
		for _, spec := range res.Specifiers() {
			r, ok := q.run.resolved.Get(from, spec)
			if !ok {
				continue
			}
			fresh, err := q.imports.add(r.Path)
			if err != nil {
				return err
			}
			if err := q.imports.link(from, r.Path); err != nil {
				return err
			}
			if fresh {
				queue = append(queue, r.Path)
			}
		}
	}
	return nil
}

// dependencies returns every file the root reaches through a remaining
// import.
func (q *request) dependencies() ([]string, error) {
	return q.imports.reachable(q.root)
}
