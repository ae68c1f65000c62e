package engine

import (
	"fmt"
	"strconv"
)

// sortMark tracks DFS progress for one application.
type sortMark int

const (
	unvisited sortMark = iota
	traversing
	finished
)

// topoSorter assigns priority strings to every native application reachable
// from a root definition.
//
// Applications are visited depth first in creation order, descending into
// contained definitions after the scope's own applications, and following
// outgoing connections. Reverse postorder is a topological order; each
// application's index in it is zero-padded to a common width so that
// lexicographic string order equals numeric order.
type topoSorter struct {
	marks map[*Application]sortMark
	stack []*Application
	post  []*Application
}

// sortRoot computes priorities for the whole tree under root. It fails with
// a cycle error naming the offending applications and assigns nothing.
func sortRoot(root *UserDefinition) (map[*Application]string, error) {
	s := &topoSorter{marks: make(map[*Application]sortMark)}
	if err := s.traverseDefinition(root); err != nil {
		return nil, err
	}

	n := len(s.post)
	width := len(strconv.Itoa(max(n-1, 0)))
	priorities := make(map[*Application]string, n)
	for i := 0; i < n; i++ {
		priorities[s.post[n-1-i]] = fmt.Sprintf("%0*d", width, i)
	}
	return priorities, nil
}

func (s *topoSorter) traverseDefinition(def *UserDefinition) error {
	for _, app := range def.applications {
		if err := s.visit(app); err != nil {
			return err
		}
	}
	for _, d := range def.definitions {
		if err := s.traverseDefinition(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *topoSorter) visit(app *Application) error {
	switch s.marks[app] {
	case finished:
		return nil
	case traversing:
		return newCycleError(s.cyclePath(app))
	}

	s.marks[app] = traversing
	s.stack = append(s.stack, app)
	for _, next := range app.downstream() {
		if err := s.visit(next); err != nil {
			return err
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.marks[app] = finished
	s.post = append(s.post, app)
	return nil
}

// cyclePath returns the labels of the applications on the DFS stack from
// the first visit of app, closed by app again.
func (s *topoSorter) cyclePath(app *Application) []string {
	start := 0
	for i, a := range s.stack {
		if a == app {
			start = i
			break
		}
	}
	path := make([]string, 0, len(s.stack)-start+1)
	for _, a := range s.stack[start:] {
		path = append(path, a.name)
	}
	return append(path, app.name)
}
