package topology

import (
	"reflect"
	"testing"
)

func buildLineGraph(t *testing.T) *Graph {
	t.Helper()
	g := newTestGraph()
	for _, nodeId := range []string{"a", "b", "c"} {
		addTestNode(g, nodeId)
	}
	g.AddEdge("a", "b", 10.0, 100.0, 0.99)
	g.AddEdge("b", "c", 10.0, 100.0, 0.99)
	return g
}

func TestShortestPathLine(t *testing.T) {
	g := buildLineGraph(t)

	path, found := g.ShortestPath("a", "c")
	if !found {
		t.Fatal("ShortestPath(a, c) not found")
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("ShortestPath(a, c) = %v, want %v", path, want)
	}
}

func TestShortestPathSameNode(t *testing.T) {
	g := buildLineGraph(t)

	path, found := g.ShortestPath("a", "a")
	if !found {
		t.Fatal("ShortestPath(a, a) not found")
	}
	if !reflect.DeepEqual(path, []string{"a"}) {
		t.Errorf("ShortestPath(a, a) = %v, want [a]", path)
	}
}

func TestShortestPathUnknownEndpoints(t *testing.T) {
	g := buildLineGraph(t)

	if _, found := g.ShortestPath("a", "ghost"); found {
		t.Error("ShortestPath to unknown node reported found")
	}
	if _, found := g.ShortestPath("ghost", "a"); found {
		t.Error("ShortestPath from unknown node reported found")
	}
}

func TestShortestPathUnreachable(t *testing.T) {
	g := buildLineGraph(t)
	addTestNode(g, "island")

	if _, found := g.ShortestPath("a", "island"); found {
		t.Error("ShortestPath to disconnected node reported found")
	}
}

func TestShortestPathPrefersLowerWeight(t *testing.T) {
	g := newTestGraph()
	for _, nodeId := range []string{"s", "m1", "m2", "d"} {
		addTestNode(g, nodeId)
	}
	// two routes s->d: via m1 (fast links) and via m2 (slow link)
	g.AddEdge("s", "m1", 5.0, 500.0, 0.99)
	g.AddEdge("m1", "d", 5.0, 500.0, 0.99)
	g.AddEdge("s", "m2", 200.0, 10.0, 0.5)
	g.AddEdge("m2", "d", 200.0, 10.0, 0.5)

	path, found := g.ShortestPath("s", "d")
	if !found {
		t.Fatal("ShortestPath(s, d) not found")
	}
	want := []string{"s", "m1", "d"}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("ShortestPath(s, d) = %v, want %v", path, want)
	}
}

func TestShortestPathDirectBeatsDetour(t *testing.T) {
	g := newTestGraph()
	for _, nodeId := range []string{"a", "b", "c"} {
		addTestNode(g, nodeId)
	}
	g.AddEdge("a", "c", 10.0, 100.0, 0.99)
	g.AddEdge("a", "b", 10.0, 100.0, 0.99)
	g.AddEdge("b", "c", 10.0, 100.0, 0.99)

	path, found := g.ShortestPath("a", "c")
	if !found {
		t.Fatal("ShortestPath(a, c) not found")
	}
	if len(path) != 2 {
		t.Errorf("ShortestPath(a, c) = %v, want direct two hop path", path)
	}
}
