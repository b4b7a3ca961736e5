package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cubic461/Noodle-Core-sub003/internal/mesh"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

const forecastSampleWindow = 20

type Handler struct {
	logger hclog.Logger
	orch   *mesh.Orchestrator
}

func NewHandler(logger hclog.Logger, orch *mesh.Orchestrator) *Handler {
	return &Handler{
		logger: logger,
		orch:   orch,
	}
}

// NewRouter wires every API route. The /metrics and /mesh/ws endpoints are
// added by the entrypoint depending on configuration.
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", handler.Healthz).Methods(http.MethodGet)

	router.HandleFunc("/mesh/topology", handler.GetTopology).Methods(http.MethodGet)
	router.HandleFunc("/mesh/stats", handler.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/mesh/route/{fromNode}/{toNode}", handler.GetRoute).Methods(http.MethodGet)
	router.HandleFunc("/mesh/best-node", handler.GetBestNode).Methods(http.MethodGet)
	router.HandleFunc("/mesh/nodes", handler.AddNode).Methods(http.MethodPost)
	router.HandleFunc("/mesh/nodes/{nodeId}", handler.RemoveNode).Methods(http.MethodDelete)
	router.HandleFunc("/mesh/nodes/{nodeId}/metrics", handler.UpdateNodeMetrics).Methods(http.MethodPut)
	router.HandleFunc("/mesh/edges", handler.AddEdge).Methods(http.MethodPost)

	router.HandleFunc("/balancer/loads", handler.GetNodeLoads).Methods(http.MethodGet)
	router.HandleFunc("/balancer/loads/{nodeId}", handler.UpdateNodeLoad).Methods(http.MethodPut)
	router.HandleFunc("/balancer/distribution", handler.GetLoadDistribution).Methods(http.MethodGet)
	router.HandleFunc("/balancer/select", handler.SelectNode).Methods(http.MethodPost)
	router.HandleFunc("/balancer/strategy", handler.SetStrategy).Methods(http.MethodPut)
	router.HandleFunc("/balancer/weights/{nodeId}", handler.SetNodeWeight).Methods(http.MethodPut)
	router.HandleFunc("/balancer/weights/{nodeId}", handler.RemoveNodeWeight).Methods(http.MethodDelete)
	router.HandleFunc("/balancer/results", handler.RecordResult).Methods(http.MethodPost)
	router.HandleFunc("/balancer/stats", handler.GetBalancerStats).Methods(http.MethodGet)

	router.HandleFunc("/scaling/summary", handler.GetScalingSummary).Methods(http.MethodGet)
	router.HandleFunc("/scaling/decisions", handler.GetScalingDecisions).Methods(http.MethodGet)
	router.HandleFunc("/scaling/statistics", handler.GetScalingStatistics).Methods(http.MethodGet)
	router.HandleFunc("/scaling/forecast", handler.GetForecast).Methods(http.MethodGet)

	return router
}

func (handler *Handler) Healthz(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

// MESH ROUTES

func (handler *Handler) GetTopology(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Topology(), rw)
}

func (handler *Handler) GetStats(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Stats(), rw)
}

func (handler *Handler) GetRoute(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	fromNode := getURLParameter(r, "fromNode")
	toNode := getURLParameter(r, "toNode")

	path, found := handler.orch.FindRoute(fromNode, toNode)
	if !found {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: fmt.Sprintf("no route from %s to %s", fromNode, toNode)}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(RouteResponse{Path: path, Hops: len(path) - 1}, rw)
}

func (handler *Handler) GetBestNode(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	taskType := r.URL.Query().Get("task_type")
	capabilities := splitCommaList(r.URL.Query().Get("capabilities"))
	excludeNodes := splitCommaList(r.URL.Query().Get("exclude"))

	nodeId, found := handler.orch.BestNode(taskType, capabilities, excludeNodes)
	if !found {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: "no suitable node for the task"}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(BestNodeResponse{NodeId: nodeId, TaskType: taskType}, rw)
}

func (handler *Handler) AddNode(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	request := &AddNodeRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		handler.logger.Error("Error decoding add node request", "error", err)
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}
	if request.NodeId == "" {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "node_id is required"}, rw)
		return
	}

	handler.orch.AddNode(&model.Node{
		Id:           request.NodeId,
		Hostname:     request.Hostname,
		Capabilities: request.Capabilities,
		Metrics:      model.NewNodeMetrics(),
	})

	handler.logger.Info(fmt.Sprintf("Node %s added through the API", request.NodeId))

	rw.WriteHeader(http.StatusOK)
	toJSON(request.NodeId, rw)
}

func (handler *Handler) RemoveNode(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	nodeId := getURLParameter(r, "nodeId")

	if !handler.orch.RemoveNode(nodeId) {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: "no node with the given ID"}, rw)
		return
	}

	handler.logger.Info(fmt.Sprintf("Node %s removed through the API", nodeId))

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) UpdateNodeMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	nodeId := getURLParameter(r, "nodeId")

	fields := map[string]float64{}
	if err := fromJSON(&fields, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}

	if !handler.orch.UpdateNodeMetrics(r.Context(), nodeId, model.MetricsUpdateFromMap(fields)) {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: "no node with the given ID"}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) AddEdge(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	request := &AddEdgeRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}
	if request.FromNode == "" || request.ToNode == "" {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "from_node and to_node are required"}, rw)
		return
	}

	if !handler.orch.AddEdge(request.FromNode, request.ToNode, request.Latency, request.Bandwidth, request.Reliability) {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: "unknown node in edge"}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

// BALANCER ROUTES

func (handler *Handler) GetNodeLoads(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Balancer().NodeLoads(), rw)
}

func (handler *Handler) UpdateNodeLoad(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	nodeId := getURLParameter(r, "nodeId")

	fields := map[string]float64{}
	if err := fromJSON(&fields, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}

	handler.orch.UpdateNodeLoad(nodeId, model.LoadUpdateFromMap(fields))

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) GetLoadDistribution(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Balancer().LoadDistribution(), rw)
}

func (handler *Handler) SelectNode(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	request := &SelectNodeRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}

	nodeId, found := handler.orch.Balancer().SelectNode(request.AvailableNodes, request.RequestContext)
	if !found {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: "no node available"}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(SelectNodeResponse{NodeId: nodeId}, rw)
}

func (handler *Handler) SetStrategy(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	request := &SetStrategyRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}

	if err := handler.orch.Balancer().SetStrategy(request.Strategy); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: err.Error()}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) SetNodeWeight(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	nodeId := getURLParameter(r, "nodeId")

	request := &SetWeightRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}

	handler.orch.Balancer().SetNodeWeight(nodeId, request.Weight)

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) RemoveNodeWeight(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	nodeId := getURLParameter(r, "nodeId")

	handler.orch.Balancer().RemoveNodeWeight(nodeId)

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) RecordResult(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	request := &RecordResultRequest{}
	if err := fromJSON(request, r.Body); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "invalid request body"}, rw)
		return
	}
	if request.NodeId == "" {
		rw.WriteHeader(http.StatusBadRequest)
		toJSON(ErrorResponse{Error: "node_id is required"}, rw)
		return
	}

	if !handler.orch.Balancer().RecordResult(request.NodeId, request.Success, request.ResponseTime) {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: "no recent selection for the given node"}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(StatusResponse{Status: "ok"}, rw)
}

func (handler *Handler) GetBalancerStats(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Balancer().Stats(), rw)
}

// SCALING ROUTES

func (handler *Handler) GetScalingSummary(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Scaler().Summary(), rw)
}

func (handler *Handler) GetScalingDecisions(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	limit := parseIntQuery(r, "limit", 50)

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Scaler().Decisions(limit), rw)
}

func (handler *Handler) GetScalingStatistics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	toJSON(handler.orch.Scaler().DecisionStatistics(), rw)
}

func (handler *Handler) GetForecast(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	ticksAhead := parseIntQuery(r, "ticks", 5)

	forecast, err := handler.orch.Scaler().Forecast(forecastSampleWindow)
	if err != nil {
		rw.WriteHeader(http.StatusNotFound)
		toJSON(ErrorResponse{Error: err.Error()}, rw)
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(forecast.Report(ticksAhead), rw)
}

// HELPER METHODS

func getURLParameter(r *http.Request, parameter string) string {
	vars := mux.Vars(r)
	id := vars[parameter]
	return id
}

func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}

	var parts []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
