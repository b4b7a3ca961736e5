package topology

import (
	"container/heap"
	"math"
)

type pqItem struct {
	nodeId   string
	distance float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].distance < pq[j].distance }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath runs Dijkstra over the derived edge weights and returns the
// path start to end inclusive. Returns false when either endpoint is unknown
// or no path exists.
func (g *Graph) ShortestPath(startNodeId string, endNodeId string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, found := g.nodes[startNodeId]; !found {
		return nil, false
	}
	if _, found := g.nodes[endNodeId]; !found {
		return nil, false
	}

	if startNodeId == endNodeId {
		return []string{startNodeId}, true
	}

	distances := make(map[string]float64, len(g.nodes))
	for id := range g.nodes {
		distances[id] = math.Inf(1)
	}
	distances[startNodeId] = 0

	previous := make(map[string]string)

	pq := priorityQueue{{nodeId: startNodeId, distance: 0}}
	heap.Init(&pq)

	for pq.Len() > 0 {
		current := heap.Pop(&pq).(pqItem)

		// stale queue entry, a shorter path was already found
		if current.distance > distances[current.nodeId] {
			continue
		}

		if current.nodeId == endNodeId {
			break
		}

		for neighbor := range g.adjacency[current.nodeId] {
			edge := g.edges[current.nodeId][neighbor]
			if edge == nil {
				continue
			}

			distance := current.distance + edge.Weight()
			if distance < distances[neighbor] {
				distances[neighbor] = distance
				previous[neighbor] = current.nodeId
				heap.Push(&pq, pqItem{nodeId: neighbor, distance: distance})
			}
		}
	}

	if math.IsInf(distances[endNodeId], 1) {
		return nil, false
	}

	path := []string{}
	for current := endNodeId; current != startNodeId; {
		path = append(path, current)
		parent, found := previous[current]
		if !found {
			return nil, false
		}
		current = parent
	}
	path = append(path, startNodeId)

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, true
}
