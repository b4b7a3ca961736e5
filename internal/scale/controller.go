package scale

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/authz"
	"github.com/cubic461/Noodle-Core-sub003/internal/balance"
	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/cubic461/Noodle-Core-sub003/internal/monitor"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gonum.org/v1/gonum/stat"
)

// INodeCounter reports how many nodes the mesh currently tracks; the
// topology graph satisfies it.
type INodeCounter interface {
	NodeCount() int
}

// Config are the autoscaling thresholds and limits. Cpu and memory
// thresholds are percentages matching the load snapshots.
type Config struct {
	CpuThreshold          float64
	MemoryThreshold       float64
	RequestThreshold      int64
	ResponseTimeThreshold float64
	ErrorRateThreshold    float64
	MinNodes              int
	MaxNodes              int
	ScaleUpCooldown       time.Duration
	ScaleDownCooldown     time.Duration
	AutoScalingEnabled    bool
	TickInterval          time.Duration
	ErrorBackoff          time.Duration
}

func DefaultConfig() Config {
	return Config{
		CpuThreshold:          80.0,
		MemoryThreshold:       85.0,
		RequestThreshold:      1000,
		ResponseTimeThreshold: 1000.0,
		ErrorRateThreshold:    0.05,
		MinNodes:              2,
		MaxNodes:              10,
		ScaleUpCooldown:       5 * time.Minute,
		ScaleDownCooldown:     10 * time.Minute,
		AutoScalingEnabled:    true,
		TickInterval:          30 * time.Second,
		ErrorBackoff:          10 * time.Second,
	}
}

// AggregatedMetrics is one cluster wide aggregation sample.
type AggregatedMetrics struct {
	Timestamp           time.Time `json:"timestamp"`
	NodeCount           int       `json:"node_count"`
	ActiveNodes         int       `json:"active_nodes"`
	AverageCpu          float64   `json:"average_cpu"`
	AverageMemory       float64   `json:"average_memory"`
	TotalRequests       int64     `json:"total_requests"`
	AverageResponseTime float64   `json:"average_response_time"`
	AverageErrorRate    float64   `json:"average_error_rate"`
}

// HistoryEntry records one executed scaling action.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	NodeId     string    `json:"node_id,omitempty"`
	DecisionId string    `json:"decision_id"`
}

// Summary is the operator facing digest of the controller state.
type Summary struct {
	TotalDecisions     int            `json:"total_decisions"`
	CompletedDecisions int            `json:"completed_decisions"`
	FailedDecisions    int            `json:"failed_decisions"`
	AverageImpact      float64        `json:"average_impact"`
	AutoScalingEnabled bool           `json:"auto_scaling_enabled"`
	MinNodes           int            `json:"min_nodes"`
	MaxNodes           int            `json:"max_nodes"`
	CurrentNodes       int            `json:"current_nodes"`
	ScalingHistory     []HistoryEntry `json:"scaling_history"`
	BalancerStats      balance.Stats  `json:"load_balancer_stats"`
}

// DecisionStatistics buckets all tracked decisions by action and status.
type DecisionStatistics struct {
	TotalDecisions    int            `json:"total_decisions"`
	DecisionsByAction map[string]int `json:"decisions_by_action"`
	DecisionsByStatus map[string]int `json:"decisions_by_status"`
}

// Controller evaluates cluster load each tick and proposes and executes
// scaling decisions against the load balancer.
type Controller struct {
	mu          sync.Mutex
	logger      hclog.Logger
	config      Config
	balancer    *balance.Balancer
	nodeCounter INodeCounter
	authorizer  authz.IAuthorizer
	recorder    monitor.IMetricsRecorder
	eventBus    *events.EventBus

	decisions      map[string]*model.ScalingDecision
	decisionOrder  []string
	scalingHistory []HistoryEntry
	metricsHistory []AggregatedMetrics
	lastScaleUp    time.Time
	lastScaleDown  time.Time
	active         bool
}

// NewController wires the controller to its collaborators. The authorizer
// and recorder are required; eventBus may be nil when nobody listens for
// decision events.
func NewController(config Config, balancer *balance.Balancer, nodeCounter INodeCounter, authorizer authz.IAuthorizer, recorder monitor.IMetricsRecorder, eventBus *events.EventBus, logger hclog.Logger) *Controller {
	return &Controller{
		logger:      logger,
		config:      config,
		balancer:    balancer,
		nodeCounter: nodeCounter,
		authorizer:  authorizer,
		recorder:    recorder,
		eventBus:    eventBus,
		decisions:   map[string]*model.ScalingDecision{},
	}
}

// Run evaluates scaling needs every tick until the context is canceled.
func (controller *Controller) Run(ctx context.Context) {
	controller.setActive(true)
	defer controller.setActive(false)

	controller.logger.Info("Autoscaling controller started")

	for {
		interval := controller.config.TickInterval
		if controller.config.AutoScalingEnabled {
			if _, err := controller.EvaluateOnce(ctx); err != nil {
				if ctx.Err() != nil {
					controller.logger.Info("Autoscaling controller stopped")
					return
				}
				controller.logger.Error("Scaling evaluation cycle failed", "error", err)
				interval = controller.config.ErrorBackoff
			}
		}

		select {
		case <-ctx.Done():
			controller.logger.Info("Autoscaling controller stopped")
			return
		case <-time.After(interval):
		}
	}
}

func (controller *Controller) setActive(active bool) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.active = active
}

// IsActive reports whether the evaluation loop is running.
func (controller *Controller) IsActive() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.active
}

// EvaluateOnce performs one full evaluation cycle and returns the decisions
// it processed, in execution order.
func (controller *Controller) EvaluateOnce(ctx context.Context) ([]model.ScalingDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := controller.CollectMetrics()
	proposals := controller.evaluate(metrics)
	for _, decision := range proposals {
		controller.execute(ctx, decision)
	}

	executed := make([]model.ScalingDecision, 0, len(proposals))
	controller.mu.Lock()
	for _, decision := range proposals {
		executed = append(executed, *decision)
	}
	controller.mu.Unlock()

	return executed, nil
}

// CollectMetrics aggregates the current load snapshots into one sample and
// appends it to the bounded metrics history.
func (controller *Controller) CollectMetrics() AggregatedMetrics {
	loads := controller.balancer.NodeLoads()

	metrics := AggregatedMetrics{
		Timestamp:   time.Now(),
		NodeCount:   controller.nodeCounter.NodeCount(),
		ActiveNodes: len(loads),
	}

	if len(loads) > 0 {
		cpuValues := make([]float64, 0, len(loads))
		memoryValues := make([]float64, 0, len(loads))
		responseTimes := make([]float64, 0, len(loads))
		errorRates := make([]float64, 0, len(loads))
		for _, load := range loads {
			cpuValues = append(cpuValues, load.CpuUsage)
			memoryValues = append(memoryValues, load.MemoryUsage)
			responseTimes = append(responseTimes, load.ResponseTime)
			errorRates = append(errorRates, load.ErrorRate)
			metrics.TotalRequests += load.RequestCount
		}
		metrics.AverageCpu = stat.Mean(cpuValues, nil)
		metrics.AverageMemory = stat.Mean(memoryValues, nil)
		metrics.AverageResponseTime = stat.Mean(responseTimes, nil)
		metrics.AverageErrorRate = stat.Mean(errorRates, nil)
	}

	controller.mu.Lock()
	controller.metricsHistory = common.AppendBounded(controller.metricsHistory, metrics, common.METRICS_HISTORY_SIZE)
	controller.mu.Unlock()

	return metrics
}

// evaluate turns one aggregation sample into scaling proposals. Scale up and
// scale down are mutually exclusive per cycle; redistribution is independent
// and can accompany either.
func (controller *Controller) evaluate(metrics AggregatedMetrics) []*model.ScalingDecision {
	decisions := []*model.ScalingDecision{}

	if controller.shouldScaleUp(metrics) {
		if controller.inCooldown(model.SCALE_UP) {
			controller.suppress(model.SCALE_UP)
		} else {
			decisions = append(decisions, controller.newDecision(model.SCALE_UP, "High resource utilization detected", 0.9, 0.3, 0.8, 10.0))
		}
	} else if controller.shouldScaleDown(metrics) {
		if controller.inCooldown(model.SCALE_DOWN) {
			controller.suppress(model.SCALE_DOWN)
		} else {
			decisions = append(decisions, controller.newDecision(model.SCALE_DOWN, "Low resource utilization detected", 0.7, 0.2, 0.7, 5.0))
		}
	}

	if controller.shouldRedistribute() {
		decisions = append(decisions, controller.newDecision(model.REDISTRIBUTE_LOAD, "Uneven load distribution detected", 0.6, 0.15, 0.9, 2.0))
	}

	return decisions
}

func (controller *Controller) shouldScaleUp(metrics AggregatedMetrics) bool {
	if metrics.NodeCount >= controller.config.MaxNodes {
		return false
	}

	return metrics.AverageCpu > controller.config.CpuThreshold ||
		metrics.AverageMemory > controller.config.MemoryThreshold ||
		metrics.TotalRequests > controller.config.RequestThreshold ||
		metrics.AverageResponseTime > controller.config.ResponseTimeThreshold ||
		metrics.AverageErrorRate > controller.config.ErrorRateThreshold
}

func (controller *Controller) shouldScaleDown(metrics AggregatedMetrics) bool {
	if metrics.NodeCount <= controller.config.MinNodes {
		return false
	}

	return metrics.AverageCpu < 0.6*controller.config.CpuThreshold &&
		metrics.AverageMemory < 0.6*controller.config.MemoryThreshold &&
		float64(metrics.TotalRequests) < 0.3*float64(controller.config.RequestThreshold)
}

// shouldRedistribute checks for uneven load: population standard deviation
// of per node cpu above 20 percentage points. Exactly 20.0 does not trigger.
func (controller *Controller) shouldRedistribute() bool {
	distribution := controller.balancer.LoadDistribution()
	if len(distribution) < 2 {
		return false
	}

	cpuValues := make([]float64, 0, len(distribution))
	for _, entry := range distribution {
		cpuValues = append(cpuValues, entry.CpuUsage)
	}

	return stat.PopStdDev(cpuValues, nil) > 20.0
}

func (controller *Controller) inCooldown(action model.ScalingAction) bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	switch action {
	case model.SCALE_UP:
		return !controller.lastScaleUp.IsZero() && time.Since(controller.lastScaleUp) < controller.config.ScaleUpCooldown
	case model.SCALE_DOWN:
		return !controller.lastScaleDown.IsZero() && time.Since(controller.lastScaleDown) < controller.config.ScaleDownCooldown
	}

	return false
}

func (controller *Controller) suppress(action model.ScalingAction) {
	controller.logger.Debug(fmt.Sprintf("Suppressing %s proposal, cooldown active", action.String()))
	controller.recorder.RecordMetric("scaling_suppressed_total", 1, map[string]string{"action": action.String()})
}

func (controller *Controller) newDecision(action model.ScalingAction, reason string, priority float64, expectedImpact float64, confidence float64, cost float64) *model.ScalingDecision {
	return &model.ScalingDecision{
		Id:             fmt.Sprintf("%s_%s", action.String(), uuid.NewString()[:8]),
		Action:         action,
		TargetNodes:    []string{},
		Reason:         reason,
		Priority:       priority,
		ExpectedImpact: expectedImpact,
		Confidence:     confidence,
		Cost:           cost,
		Status:         model.SCALING_PENDING,
		CreatedAt:      time.Now(),
	}
}

// execute runs one decision through its lifecycle. The decision is tracked
// before execution starts so failed attempts stay auditable.
func (controller *Controller) execute(ctx context.Context, decision *model.ScalingDecision) {
	executedAt := time.Now()

	controller.mu.Lock()
	decision.Status = model.SCALING_EXECUTING
	decision.ExecutedAt = &executedAt
	controller.decisions[decision.Id] = decision
	controller.decisionOrder = append(controller.decisionOrder, decision.Id)
	if len(controller.decisionOrder) > common.SCALING_HISTORY_SIZE {
		evicted := controller.decisionOrder[0]
		controller.decisionOrder = controller.decisionOrder[1:]
		delete(controller.decisions, evicted)
	}
	controller.mu.Unlock()

	var err error
	verdict := controller.authorizer.CheckPermission(ctx, authz.Request{
		RequesterId: "autoscaling-controller",
		Operation:   decision.Action.String(),
		Resource:    "cluster",
	})
	if !verdict.Allowed {
		err = fmt.Errorf("permission denied: %s", verdict.Reason)
	} else {
		switch decision.Action {
		case model.SCALE_UP:
			err = controller.executeScaleUp(decision)
		case model.SCALE_DOWN:
			err = controller.executeScaleDown(decision)
		case model.REDISTRIBUTE_LOAD:
			err = controller.executeRedistribute(decision)
		default:
			err = fmt.Errorf("unsupported scaling action: %s", decision.Action)
		}
	}

	completedAt := time.Now()
	controller.mu.Lock()
	decision.CompletedAt = &completedAt
	if err != nil {
		decision.Status = model.SCALING_FAILED
		decision.Reason = fmt.Sprintf("%s (failed: %v)", decision.Reason, err)
	} else {
		decision.Status = model.SCALING_COMPLETED
		switch decision.Action {
		case model.SCALE_UP:
			controller.lastScaleUp = completedAt
		case model.SCALE_DOWN:
			controller.lastScaleDown = completedAt
		}
	}
	status := decision.Status
	controller.mu.Unlock()

	if err != nil {
		controller.logger.Error(fmt.Sprintf("Scaling decision %s failed", decision.Id), "error", err)
	} else {
		controller.logger.Info(fmt.Sprintf("Scaling decision %s completed successfully", decision.Id))
	}

	controller.recorder.RecordMetric("scaling_decisions_total", 1, map[string]string{
		"action": decision.Action.String(),
		"status": status.String(),
	})
	if controller.eventBus != nil {
		controller.mu.Lock()
		snapshot := *decision
		controller.mu.Unlock()
		controller.eventBus.Publish(events.Event{
			Type:      common.SCALING_DECISION_EVENT_TYPE,
			Timestamp: completedAt,
			Data:      events.ScalingDecisionEvent{Decision: snapshot},
		})
	}
}

func (controller *Controller) executeScaleUp(decision *model.ScalingDecision) error {
	controller.logger.Info("Executing scale up action")

	// Provisioning is delegated to the membership layer; here a fresh node id
	// is registered with the balancer so traffic can shift once it reports in.
	nodeId := fmt.Sprintf("node_%s", uuid.NewString()[:8])
	controller.balancer.SetNodeWeight(nodeId, 1)

	controller.mu.Lock()
	decision.TargetNodes = append(decision.TargetNodes, nodeId)
	controller.mu.Unlock()
	controller.appendHistory(HistoryEntry{
		Timestamp:  time.Now(),
		Action:     model.SCALE_UP.String(),
		NodeId:     nodeId,
		DecisionId: decision.Id,
	})

	return nil
}

func (controller *Controller) executeScaleDown(decision *model.ScalingDecision) error {
	controller.logger.Info("Executing scale down action")

	loads := controller.balancer.NodeLoads()
	candidates := []string{}
	for nodeId, load := range loads {
		if load.CpuUsage < 30.0 && load.MemoryUsage < 40.0 && load.ActiveConnections < 5 {
			candidates = append(candidates, nodeId)
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no underutilized node eligible for removal")
	}

	sort.Strings(candidates)
	target := candidates[0]
	for _, nodeId := range candidates[1:] {
		if loads[nodeId].CpuUsage < loads[target].CpuUsage {
			target = nodeId
		}
	}

	controller.balancer.RemoveNodeWeight(target)

	controller.mu.Lock()
	decision.TargetNodes = append(decision.TargetNodes, target)
	controller.mu.Unlock()
	controller.appendHistory(HistoryEntry{
		Timestamp:  time.Now(),
		Action:     model.SCALE_DOWN.String(),
		NodeId:     target,
		DecisionId: decision.Id,
	})

	return nil
}

func (controller *Controller) executeRedistribute(decision *model.ScalingDecision) error {
	controller.logger.Info("Executing load redistribution action")

	if controller.balancer.Strategy() != common.STRATEGY_RESOURCE_BASED {
		if err := controller.balancer.SetStrategy(common.STRATEGY_RESOURCE_BASED); err != nil {
			return err
		}
	}

	controller.appendHistory(HistoryEntry{
		Timestamp:  time.Now(),
		Action:     model.REDISTRIBUTE_LOAD.String(),
		DecisionId: decision.Id,
	})

	return nil
}

func (controller *Controller) appendHistory(entry HistoryEntry) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.scalingHistory = common.AppendBounded(controller.scalingHistory, entry, common.SCALING_HISTORY_SIZE)
}

// Summary reports the controller state digest, including the ten most
// recent history entries and the balancer statistics.
func (controller *Controller) Summary() Summary {
	currentNodes := controller.nodeCounter.NodeCount()
	balancerStats := controller.balancer.Stats()

	controller.mu.Lock()
	defer controller.mu.Unlock()

	summary := Summary{
		TotalDecisions:     len(controller.decisions),
		AutoScalingEnabled: controller.config.AutoScalingEnabled,
		MinNodes:           controller.config.MinNodes,
		MaxNodes:           controller.config.MaxNodes,
		CurrentNodes:       currentNodes,
		BalancerStats:      balancerStats,
	}

	impacts := []float64{}
	for _, decision := range controller.decisions {
		switch decision.Status {
		case model.SCALING_COMPLETED:
			summary.CompletedDecisions++
			impacts = append(impacts, decision.ExpectedImpact)
		case model.SCALING_FAILED:
			summary.FailedDecisions++
		}
	}
	summary.AverageImpact = common.CalculateAverageFloat64(impacts)

	history := controller.scalingHistory
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	summary.ScalingHistory = append([]HistoryEntry{}, history...)

	return summary
}

// Decisions returns tracked decisions newest first, up to limit; limit <= 0
// returns all of them.
func (controller *Controller) Decisions(limit int) []model.ScalingDecision {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	decisions := make([]model.ScalingDecision, 0, len(controller.decisionOrder))
	for i := len(controller.decisionOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(decisions) == limit {
			break
		}
		decisions = append(decisions, *controller.decisions[controller.decisionOrder[i]])
	}

	return decisions
}

// DecisionStatistics buckets tracked decisions by action and by status.
func (controller *Controller) DecisionStatistics() DecisionStatistics {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	statistics := DecisionStatistics{
		TotalDecisions:    len(controller.decisions),
		DecisionsByAction: map[string]int{},
		DecisionsByStatus: map[string]int{},
	}
	for _, decision := range controller.decisions {
		statistics.DecisionsByAction[decision.Action.String()]++
		statistics.DecisionsByStatus[decision.Status.String()]++
	}

	return statistics
}

// MetricsHistory returns the most recent aggregation samples, oldest first,
// up to limit; limit <= 0 returns all of them.
func (controller *Controller) MetricsHistory(limit int) []AggregatedMetrics {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	history := controller.metricsHistory
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	return append([]AggregatedMetrics{}, history...)
}
