package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ScalingAction int

const (
	SCALE_UP ScalingAction = iota
	SCALE_DOWN
	REDISTRIBUTE_LOAD
	ADD_NODE
	REMOVE_NODE
)

func (a ScalingAction) String() string {
	switch a {
	case SCALE_UP:
		return "scale_up"
	case SCALE_DOWN:
		return "scale_down"
	case REDISTRIBUTE_LOAD:
		return "redistribute_load"
	case ADD_NODE:
		return "add_node"
	case REMOVE_NODE:
		return "remove_node"
	default:
		return "unknown"
	}
}

// Marshal as a JSON string: "scale_up"/"scale_down"/...
func (a ScalingAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Accept either JSON strings ("scale_up") or numbers (0-4)
func (a *ScalingAction) UnmarshalJSON(b []byte) error {
	// string path
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		s := strings.Trim(string(b), `"`)
		switch strings.ToLower(s) {
		case "scale_up":
			*a = SCALE_UP
		case "scale_down":
			*a = SCALE_DOWN
		case "redistribute_load":
			*a = REDISTRIBUTE_LOAD
		case "add_node":
			*a = ADD_NODE
		case "remove_node":
			*a = REMOVE_NODE
		default:
			return fmt.Errorf("invalid ScalingAction: %q", s)
		}
		return nil
	}
	// numeric path
	var i int
	if err := json.Unmarshal(b, &i); err != nil {
		return err
	}
	switch v := ScalingAction(i); v {
	case SCALE_UP, SCALE_DOWN, REDISTRIBUTE_LOAD, ADD_NODE, REMOVE_NODE:
		*a = v
		return nil
	default:
		return fmt.Errorf("invalid ScalingAction numeric value: %d", i)
	}
}

type ScalingStatus int

const (
	SCALING_PENDING ScalingStatus = iota
	SCALING_EXECUTING
	SCALING_COMPLETED
	SCALING_FAILED
)

func (s ScalingStatus) String() string {
	switch s {
	case SCALING_PENDING:
		return "pending"
	case SCALING_EXECUTING:
		return "executing"
	case SCALING_COMPLETED:
		return "completed"
	case SCALING_FAILED:
		return "failed"
	default:
		return "unknown"
	}
}

func (s ScalingStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ScalingStatus) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		v := strings.Trim(string(b), `"`)
		switch strings.ToLower(v) {
		case "pending":
			*s = SCALING_PENDING
		case "executing":
			*s = SCALING_EXECUTING
		case "completed":
			*s = SCALING_COMPLETED
		case "failed":
			*s = SCALING_FAILED
		default:
			return fmt.Errorf("invalid ScalingStatus: %q", v)
		}
		return nil
	}
	var i int
	if err := json.Unmarshal(b, &i); err != nil {
		return err
	}
	switch v := ScalingStatus(i); v {
	case SCALING_PENDING, SCALING_EXECUTING, SCALING_COMPLETED, SCALING_FAILED:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid ScalingStatus numeric value: %d", i)
	}
}

// ScalingDecision is a proposed capacity-management action and its lifecycle.
// Status only ever moves pending -> executing -> completed/failed.
type ScalingDecision struct {
	Id             string        `json:"id"`
	Action         ScalingAction `json:"action"`
	TargetNodes    []string      `json:"target_nodes"`
	Reason         string        `json:"reason"`
	Priority       float64       `json:"priority"`
	ExpectedImpact float64       `json:"expected_impact"`
	Confidence     float64       `json:"confidence"`
	Cost           float64       `json:"cost"`
	Status         ScalingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ExecutedAt     *time.Time    `json:"executed_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}
