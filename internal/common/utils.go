package common

import (
	"encoding/csv"
	"os"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
)

func ReadCsvFile(filePath string) ([][]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetNodeStateChangeEvent diffs two membership maps and builds the change
// event; the zero Event means nothing changed.
func GetNodeStateChangeEvent(availableNodesCurrent map[string]*model.NodeIdentity, availableNodesNew map[string]*model.NodeIdentity) events.Event {
	nodesAdded := []*model.NodeIdentity{}
	// check for added nodes
	for _, node := range availableNodesNew {
		_, found := availableNodesCurrent[node.Id]
		if !found {
			nodesAdded = append(nodesAdded, node)
		}
	}

	nodesRemoved := []*model.NodeIdentity{}
	// check for removed nodes
	for _, node := range availableNodesCurrent {
		_, found := availableNodesNew[node.Id]
		if !found {
			nodesRemoved = append(nodesRemoved, node)
		}
	}

	var event events.Event
	if len(nodesAdded) > 0 || len(nodesRemoved) > 0 {
		event = events.Event{
			Type:      NODE_STATE_CHANGE_EVENT_TYPE,
			Timestamp: time.Now(),
			Data: events.NodeStateChangeEvent{
				NodesAdded:   nodesAdded,
				NodesRemoved: nodesRemoved,
			},
		}
	}

	return event
}

// AppendBounded appends value and drops the oldest entries so the slice never
// exceeds max; max <= 0 means unbounded.
func AppendBounded[T any](s []T, value T, max int) []T {
	s = append(s, value)
	if max > 0 && len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func CalculateAverageFloat64(numbers []float64) float64 {
	if len(numbers) == 0 {
		return 0
	}

	var sum float64
	for _, number := range numbers {
		sum += number
	}

	return sum / float64(len(numbers))
}
