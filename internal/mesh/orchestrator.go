package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/authz"
	"github.com/cubic461/Noodle-Core-sub003/internal/balance"
	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/member"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/cubic461/Noodle-Core-sub003/internal/monitor"
	"github.com/cubic461/Noodle-Core-sub003/internal/probe"
	"github.com/cubic461/Noodle-Core-sub003/internal/scale"
	"github.com/cubic461/Noodle-Core-sub003/internal/topology"
	"github.com/cubic461/Noodle-Core-sub003/internal/transport"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const stopGracePeriod = 5 * time.Second

const membershipEventBuffer = 16

// Config are the orchestrator's own tunables. MaxLatency and MinQuality form
// the node health policy; UpdateInterval drives both background loops.
type Config struct {
	NodeId         string
	UpdateInterval time.Duration
	MaxLatency     float64
	MinQuality     float64
	Strategy       string
	ErrorBackoff   time.Duration
}

func DefaultConfig() Config {
	return Config{
		UpdateInterval: 10 * time.Second,
		MaxLatency:     50.0,
		MinQuality:     0.7,
		Strategy:       common.STRATEGY_RESOURCE_BASED,
		ErrorBackoff:   5 * time.Second,
	}
}

// Stats are the orchestrator's lifetime counters plus the current graph size.
type Stats struct {
	RoutesCalculated   int64 `json:"routes_calculated"`
	FailedRoutes       int64 `json:"failed_routes"`
	BestNodeSelections int64 `json:"best_node_selections"`
	TopologyUpdates    int64 `json:"topology_updates"`
	MetricsUpdates     int64 `json:"metrics_updates"`
	Running            bool  `json:"running"`
	NodeCount          int   `json:"node_count"`
	EdgeCount          int   `json:"edge_count"`
}

// meshMetricsPayload is the wire payload of a mesh_metrics frame.
type meshMetricsPayload struct {
	NodeId    string             `json:"node_id"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp float64            `json:"timestamp"`
}

// Orchestrator ties the mesh together: it keeps the topology graph in sync
// with the membership provider, feeds probed metrics into the graph and the
// load balancer, runs the autoscaling loop and exchanges mesh_metrics frames
// with remote peers.
type Orchestrator struct {
	mu        sync.Mutex
	logger    hclog.Logger
	config    Config
	graph     *topology.Graph
	balancer  *balance.Balancer
	scaler    *scale.Controller
	provider  member.INodeProvider
	source    probe.IMetricsSource
	messenger transport.IMessenger
	recorder  monitor.IMetricsRecorder
	eventBus  *events.EventBus

	membershipEvents chan events.Event
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	running          bool

	routesCalculated   int64
	failedRoutes       int64
	bestNodeSelections int64
	topologyUpdates    int64
	metricsUpdates     int64

	nodeAddedCallback       func(nodeId string)
	nodeRemovedCallback     func(nodeId string)
	topologyChangedCallback func()
}

func NewOrchestrator(config Config, scalingConfig scale.Config, provider member.INodeProvider,
	source probe.IMetricsSource, messenger transport.IMessenger, authorizer authz.IAuthorizer,
	recorder monitor.IMetricsRecorder, eventBus *events.EventBus, logger hclog.Logger) (*Orchestrator, error) {

	if config.NodeId == "" {
		config.NodeId = fmt.Sprintf("node_%s", uuid.NewString()[:8])
		logger.Info(fmt.Sprintf("No node id configured, generated %s", config.NodeId))
	}

	graph := topology.NewGraph(topology.HealthPolicy{
		MaxLatency: config.MaxLatency,
		MinQuality: config.MinQuality,
	}, logger.Named("topology"))

	balancer := balance.NewBalancer(logger.Named("balancer"))
	if err := balancer.SetStrategy(config.Strategy); err != nil {
		return nil, fmt.Errorf("applying balancing strategy: %w", err)
	}

	scaler := scale.NewController(scalingConfig, balancer, graph, authorizer, recorder, eventBus, logger.Named("scaler"))

	orch := &Orchestrator{
		logger:           logger,
		config:           config,
		graph:            graph,
		balancer:         balancer,
		scaler:           scaler,
		provider:         provider,
		source:           source,
		messenger:        messenger,
		recorder:         recorder,
		eventBus:         eventBus,
		membershipEvents: make(chan events.Event, membershipEventBuffer),
	}

	eventBus.Subscribe(common.NODE_STATE_CHANGE_EVENT_TYPE, orch.membershipEvents)

	return orch, nil
}

// Start loads the initial membership, registers the message handlers and
// launches the background loops. It returns once the mesh is running.
func (orch *Orchestrator) Start(ctx context.Context) error {
	orch.mu.Lock()
	if orch.running {
		orch.mu.Unlock()
		return fmt.Errorf("mesh orchestrator is already running")
	}
	orch.mu.Unlock()

	initialNodes, err := orch.provider.GetAllNodes(true)
	if err != nil {
		return fmt.Errorf("loading initial membership: %w", err)
	}
	for _, identity := range initialNodes {
		orch.AddNode(identityToNode(identity))
	}
	orch.logger.Info(fmt.Sprintf("Mesh initialized with %d node(s)", len(initialNodes)))

	orch.messenger.RegisterMessageHandler(common.MESH_METRICS_MESSAGE_TYPE, orch.handleMeshMetrics)
	orch.messenger.RegisterMessageHandler(common.MESH_TOPOLOGY_MESSAGE_TYPE, orch.handleMeshTopology)

	runCtx, cancel := context.WithCancel(ctx)

	orch.mu.Lock()
	orch.cancel = cancel
	orch.running = true
	orch.mu.Unlock()

	orch.wg.Add(4)
	go orch.topologyLoop(runCtx)
	go orch.metricsLoop(runCtx)
	go orch.membershipEventLoop(runCtx)
	go func() {
		defer orch.wg.Done()
		orch.scaler.Run(runCtx)
	}()

	orch.provider.StartNodeStateChangeNotifier()

	orch.logger.Info(fmt.Sprintf("Mesh orchestrator started as %s", orch.config.NodeId))

	return nil
}

// Stop halts the notifier and the background loops, waiting up to the grace
// period for them to drain, then unregisters the message handlers.
func (orch *Orchestrator) Stop() {
	orch.mu.Lock()
	if !orch.running {
		orch.mu.Unlock()
		return
	}
	orch.running = false
	cancel := orch.cancel
	orch.mu.Unlock()

	orch.provider.StopAllNotifiers()
	cancel()

	done := make(chan struct{})
	go func() {
		orch.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		orch.logger.Warn("Timed out waiting for mesh loops to stop")
	}

	orch.messenger.UnregisterMessageHandler(common.MESH_METRICS_MESSAGE_TYPE)
	orch.messenger.UnregisterMessageHandler(common.MESH_TOPOLOGY_MESSAGE_TYPE)

	orch.logger.Info("Mesh orchestrator stopped")
}

// BACKGROUND LOOPS

func (orch *Orchestrator) topologyLoop(ctx context.Context) {
	defer orch.wg.Done()

	for {
		if err := orch.syncTopology(ctx); err != nil {
			orch.logger.Error("Topology sync failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(orch.config.ErrorBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(orch.config.UpdateInterval):
		}
	}
}

func (orch *Orchestrator) metricsLoop(ctx context.Context) {
	defer orch.wg.Done()

	for {
		if err := orch.collectMetrics(ctx); err != nil {
			orch.logger.Error("Metrics collection failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(orch.config.ErrorBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(orch.config.UpdateInterval):
		}
	}
}

// membershipEventLoop reacts to NodeStateChanged events with an immediate
// topology sync instead of waiting out the ticker interval.
func (orch *Orchestrator) membershipEventLoop(ctx context.Context) {
	defer orch.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-orch.membershipEvents:
			if change, ok := event.Data.(events.NodeStateChangeEvent); ok {
				orch.logger.Info(fmt.Sprintf("Membership changed: %d added, %d removed",
					len(change.NodesAdded), len(change.NodesRemoved)))
			}
			if err := orch.syncTopology(ctx); err != nil {
				orch.logger.Error("Topology sync after membership change failed", "error", err)
			}
		}
	}
}

// syncTopology reconciles the graph against the membership provider and
// refreshes the pairwise link measurements, both directions per pair.
func (orch *Orchestrator) syncTopology(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	currentNodes, err := orch.provider.GetAllNodes(false)
	if err != nil {
		return fmt.Errorf("listing mesh members: %w", err)
	}

	for _, knownId := range orch.graph.NodeIds() {
		if _, present := currentNodes[knownId]; !present {
			orch.RemoveNode(knownId)
		}
	}

	nodeIds := make([]string, 0, len(currentNodes))
	for nodeId, identity := range currentNodes {
		nodeIds = append(nodeIds, nodeId)
		if _, found := orch.graph.Node(nodeId); !found {
			orch.AddNode(identityToNode(identity))
		}
	}
	sort.Strings(nodeIds)

	for i := 0; i < len(nodeIds); i++ {
		for j := i + 1; j < len(nodeIds); j++ {
			link, err := orch.source.LinkMetrics(ctx, nodeIds[i], nodeIds[j])
			if err != nil {
				orch.logger.Warn(fmt.Sprintf("Failed to measure link %s <-> %s: %v", nodeIds[i], nodeIds[j], err))
				continue
			}
			orch.graph.AddEdge(nodeIds[i], nodeIds[j], link.Latency, link.Bandwidth, link.Reliability)
			orch.graph.AddEdge(nodeIds[j], nodeIds[i], link.Latency, link.Bandwidth, link.Reliability)
		}
	}

	orch.mu.Lock()
	orch.topologyUpdates++
	changed := orch.topologyChangedCallback
	orch.mu.Unlock()

	orch.recorder.RecordMetric("mesh_topology_updates_total", 1, nil)
	orch.recorder.RecordMetric("mesh_nodes", float64(orch.graph.NodeCount()), nil)
	orch.recorder.RecordMetric("mesh_edges", float64(orch.graph.EdgeCount()), nil)

	if changed != nil {
		changed()
	}

	return nil
}

// collectMetrics probes every node and mirrors the utilization fields into
// the load balancer, converting usage fractions to percentages.
func (orch *Orchestrator) collectMetrics(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, nodeId := range orch.graph.NodeIds() {
		update, err := orch.source.NodeMetrics(ctx, nodeId)
		if err != nil {
			orch.logger.Warn(fmt.Sprintf("Failed to probe node %s: %v", nodeId, err))
			continue
		}
		orch.graph.UpdateNodeMetrics(nodeId, update)
		orch.mirrorLoad(nodeId, update)
	}

	orch.mu.Lock()
	orch.metricsUpdates++
	orch.mu.Unlock()

	orch.recorder.RecordMetric("mesh_metrics_updates_total", 1, nil)
	for nodeId, entry := range orch.balancer.LoadDistribution() {
		orch.recorder.RecordMetric("load_request_share", entry.RequestPercentage, map[string]string{"node": nodeId})
	}

	return nil
}

func (orch *Orchestrator) mirrorLoad(nodeId string, update model.MetricsUpdate) {
	load := model.LoadUpdate{}
	if update.CpuUsage != nil {
		cpu := *update.CpuUsage * 100.0
		load.CpuUsage = &cpu
	}
	if update.MemoryUsage != nil {
		memory := *update.MemoryUsage * 100.0
		load.MemoryUsage = &memory
	}
	load.ResponseTime = update.ResponseTime
	load.ErrorRate = update.ErrorRate

	orch.balancer.UpdateNodeLoad(nodeId, load)
}

// MESSAGE HANDLERS

// handleMeshMetrics applies a peer's metric bundle to the graph. The frame is
// never re-broadcast; every node broadcasts only its own measurements.
func (orch *Orchestrator) handleMeshMetrics(message transport.Message) {
	var payload meshMetricsPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		orch.logger.Warn(fmt.Sprintf("Discarding malformed mesh_metrics frame from %s: %v", message.SenderId, err))
		return
	}

	if payload.NodeId == "" || payload.NodeId == orch.config.NodeId {
		return
	}

	if !orch.graph.UpdateNodeMetrics(payload.NodeId, model.MetricsUpdateFromMap(payload.Metrics)) {
		orch.logger.Debug(fmt.Sprintf("Ignoring metrics for unknown node %s", payload.NodeId))
	}
}

// handleMeshTopology accepts topology frames for forward compatibility. The
// membership provider stays authoritative, so the frame is only logged.
func (orch *Orchestrator) handleMeshTopology(message transport.Message) {
	orch.logger.Debug(fmt.Sprintf("Received topology frame from %s", message.SenderId))
}

// PUBLIC API

// FindRoute returns the lowest-cost path between two nodes.
func (orch *Orchestrator) FindRoute(fromNode string, toNode string) ([]string, bool) {
	path, found := orch.graph.ShortestPath(fromNode, toNode)

	orch.mu.Lock()
	if found {
		orch.routesCalculated++
	} else {
		orch.failedRoutes++
	}
	orch.mu.Unlock()

	if found {
		orch.recorder.RecordMetric("mesh_routes_calculated_total", 1, nil)
	} else {
		orch.recorder.RecordMetric("mesh_routes_failed_total", 1, nil)
	}

	return path, found
}

// BestNode picks the healthiest suitable node for a task type.
func (orch *Orchestrator) BestNode(taskType string, requiredCapabilities []string, excludeNodes []string) (string, bool) {
	nodeId, found := orch.graph.BestNodeForTask(taskType, requiredCapabilities, excludeNodes)
	if found {
		orch.mu.Lock()
		orch.bestNodeSelections++
		orch.mu.Unlock()
		orch.recorder.RecordMetric("mesh_best_node_selections_total", 1, nil)
	}
	return nodeId, found
}

func (orch *Orchestrator) AddNode(node *model.Node) {
	orch.graph.AddNode(node)

	orch.mu.Lock()
	added := orch.nodeAddedCallback
	orch.mu.Unlock()
	if added != nil {
		added(node.Id)
	}

	orch.recorder.RecordMetric("mesh_nodes", float64(orch.graph.NodeCount()), nil)
}

// RemoveNode drops the node from the graph and clears its balancer state.
func (orch *Orchestrator) RemoveNode(nodeId string) bool {
	if !orch.graph.RemoveNode(nodeId) {
		return false
	}
	orch.balancer.RemoveNode(nodeId)

	orch.mu.Lock()
	removed := orch.nodeRemovedCallback
	orch.mu.Unlock()
	if removed != nil {
		removed(nodeId)
	}

	orch.recorder.RecordMetric("mesh_nodes", float64(orch.graph.NodeCount()), nil)

	return true
}

// AddEdge records a measured connection in both directions.
func (orch *Orchestrator) AddEdge(fromNode string, toNode string, latency float64, bandwidth float64, reliability float64) bool {
	if !orch.graph.AddEdge(fromNode, toNode, latency, bandwidth, reliability) {
		return false
	}
	orch.graph.AddEdge(toNode, fromNode, latency, bandwidth, reliability)

	orch.mu.Lock()
	changed := orch.topologyChangedCallback
	orch.mu.Unlock()
	if changed != nil {
		changed()
	}

	orch.recorder.RecordMetric("mesh_edges", float64(orch.graph.EdgeCount()), nil)

	return true
}

// UpdateNodeMetrics merges the update into the graph and broadcasts it to the
// mesh. This is the only path that broadcasts mesh_metrics frames.
func (orch *Orchestrator) UpdateNodeMetrics(ctx context.Context, nodeId string, update model.MetricsUpdate) bool {
	if !orch.graph.UpdateNodeMetrics(nodeId, update) {
		return false
	}

	payload, err := json.Marshal(meshMetricsPayload{
		NodeId:    nodeId,
		Metrics:   update.ToMap(),
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	})
	if err != nil {
		orch.logger.Error("Failed to encode mesh_metrics payload", "error", err)
		return true
	}

	message := transport.NewMessage(common.MESH_METRICS_MESSAGE_TYPE, payload)
	message.SenderId = orch.config.NodeId
	if err := orch.messenger.Broadcast(ctx, message); err != nil {
		orch.logger.Error("Failed to broadcast node metrics", "error", err)
	}

	return true
}

// UpdateNodeLoad feeds a workload snapshot straight to the load balancer.
func (orch *Orchestrator) UpdateNodeLoad(nodeId string, update model.LoadUpdate) {
	orch.balancer.UpdateNodeLoad(nodeId, update)
}

func (orch *Orchestrator) Topology() topology.Snapshot {
	return orch.graph.Snapshot()
}

func (orch *Orchestrator) Stats() Stats {
	orch.mu.Lock()
	stats := Stats{
		RoutesCalculated:   orch.routesCalculated,
		FailedRoutes:       orch.failedRoutes,
		BestNodeSelections: orch.bestNodeSelections,
		TopologyUpdates:    orch.topologyUpdates,
		MetricsUpdates:     orch.metricsUpdates,
		Running:            orch.running,
	}
	orch.mu.Unlock()

	stats.NodeCount = orch.graph.NodeCount()
	stats.EdgeCount = orch.graph.EdgeCount()

	return stats
}

func (orch *Orchestrator) NodeId() string {
	return orch.config.NodeId
}

func (orch *Orchestrator) Graph() *topology.Graph {
	return orch.graph
}

func (orch *Orchestrator) Balancer() *balance.Balancer {
	return orch.balancer
}

func (orch *Orchestrator) Scaler() *scale.Controller {
	return orch.scaler
}

// CALLBACKS

func (orch *Orchestrator) OnNodeAdded(callback func(nodeId string)) {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	orch.nodeAddedCallback = callback
}

func (orch *Orchestrator) OnNodeRemoved(callback func(nodeId string)) {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	orch.nodeRemovedCallback = callback
}

func (orch *Orchestrator) OnTopologyChanged(callback func()) {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	orch.topologyChangedCallback = callback
}

func identityToNode(identity *model.NodeIdentity) *model.Node {
	return &model.Node{
		Id:           identity.Id,
		Hostname:     identity.Hostname,
		Capabilities: identity.Capabilities,
		Metrics:      model.NewNodeMetrics(),
	}
}
