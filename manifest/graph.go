package manifest

import "fmt"

// AllDependencies returns the transitive dependencies of name without
// variant remapping. See Closure.
func (m *Manifest) AllDependencies(name string) []string {
	return m.Closure(name, nil)
}

// Closure returns the transitive dependencies of name with every edge
// remapped through ResolveVariant using accepted. The result excludes the
// (remapped) root, contains each name once, and lists dependencies before
// the bundles that need them.
func (m *Manifest) Closure(name string, accepted []string) []string {
	root := m.ResolveVariant(name, accepted)

	type frame struct {
		name string
		next int
	}
	var out []string
	visited := map[string]bool{root: true}
	stack := []frame{{name: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := m.deps[top.name]
		if top.next < len(deps) {
			dep := m.ResolveVariant(deps[top.next], accepted)
			top.next++
			if visited[dep] {
				continue
			}
			visited[dep] = true
			stack = append(stack, frame{name: dep})
			continue
		}
		if top.name != root {
			out = append(out, top.name)
		}
		stack = stack[:len(stack)-1]
	}
	return out
}

// edges expands a dependency on a variant base into every member of the group.
func (m *Manifest) edges(name string) []string {
	var out []string
	for _, dep := range m.deps[name] {
		if _, ok := m.entries[dep]; ok {
			out = append(out, dep)
			continue
		}
		out = append(out, m.variants[dep]...)
	}
	return out
}

// checkCycles walks the graph iteratively, coloring nodes to find back edges.
func (m *Manifest) checkCycles() error {
	const (
		white = iota
		gray
		black
	)
	type frame struct {
		name  string
		edges []string
		next  int
	}

	color := make(map[string]int, len(m.names))
	for _, start := range m.names {
		if color[start] != white {
			continue
		}
		color[start] = gray
		stack := []frame{{name: start, edges: m.edges(start)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(top.edges) {
				color[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.edges[top.next]
			top.next++
			switch color[dep] {
			case gray:
				return fmt.Errorf("%w: dependency cycle through %q and %q", ErrManifestMalformed, top.name, dep)
			case white:
				color[dep] = gray
				stack = append(stack, frame{name: dep, edges: m.edges(dep)})
			}
		}
	}
	return nil
}
