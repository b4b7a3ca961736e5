package server

import (
	"encoding/json"
	"io"
)

func toJSON(i interface{}, w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(i)
}

func fromJSON(i interface{}, r io.Reader) error {
	d := json.NewDecoder(r)
	return d.Decode(i)
}

type AddNodeRequest struct {
	NodeId       string            `json:"node_id"`
	Hostname     string            `json:"hostname"`
	Capabilities map[string]string `json:"capabilities"`
}

type AddEdgeRequest struct {
	FromNode    string  `json:"from_node"`
	ToNode      string  `json:"to_node"`
	Latency     float64 `json:"latency"`
	Bandwidth   float64 `json:"bandwidth"`
	Reliability float64 `json:"reliability"`
}

type SelectNodeRequest struct {
	AvailableNodes []string          `json:"available_nodes"`
	RequestContext map[string]string `json:"request_context"`
}

type SelectNodeResponse struct {
	NodeId string `json:"node_id"`
}

type SetStrategyRequest struct {
	Strategy string `json:"strategy"`
}

type SetWeightRequest struct {
	Weight int `json:"weight"`
}

type RecordResultRequest struct {
	NodeId       string  `json:"node_id"`
	Success      bool    `json:"success"`
	ResponseTime float64 `json:"response_time"`
}

type RouteResponse struct {
	Path []string `json:"path"`
	Hops int      `json:"hops"`
}

type BestNodeResponse struct {
	NodeId   string `json:"node_id"`
	TaskType string `json:"task_type"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
