package scale

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/authz"
	"github.com/cubic461/Noodle-Core-sub003/internal/balance"
	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/cubic461/Noodle-Core-sub003/internal/monitor"
	"github.com/hashicorp/go-hclog"
)

type stubNodeCounter struct {
	count int
}

func (counter *stubNodeCounter) NodeCount() int {
	return counter.count
}

type denyAuthorizer struct{}

func (authorizer *denyAuthorizer) CheckPermission(ctx context.Context, request authz.Request) authz.Decision {
	return authz.Decision{Allowed: false, Reason: "scaling locked"}
}

func newTestController(config Config, nodeCount int) (*Controller, *balance.Balancer) {
	balancer := balance.NewBalancer(hclog.NewNullLogger())
	controller := NewController(config, balancer, &stubNodeCounter{count: nodeCount}, authz.NewAllowAllAuthorizer(), monitor.NewNopRecorder(), nil, hclog.NewNullLogger())
	return controller, balancer
}

func setLoad(balancer *balance.Balancer, nodeId string, cpu float64, memory float64, connections int, requests int64) {
	balancer.UpdateNodeLoad(nodeId, model.LoadUpdate{
		CpuUsage:          &cpu,
		MemoryUsage:       &memory,
		ActiveConnections: &connections,
		RequestCount:      &requests,
	})
}

func TestScaleUpOnHighCpu(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 3)
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Fatalf("len(decisions) = %d, want 1", len(decisions))
	}

	decision := decisions[0]
	if decision.Action != model.SCALE_UP {
		t.Errorf("action = %s, want scale_up", decision.Action)
	}
	if decision.Status != model.SCALING_COMPLETED {
		t.Errorf("status = %s, want completed", decision.Status)
	}
	if decision.Priority != 0.9 {
		t.Errorf("priority = %v, want 0.9", decision.Priority)
	}
	if len(decision.TargetNodes) != 1 {
		t.Fatalf("len(target_nodes) = %d, want 1", len(decision.TargetNodes))
	}
	if got := balancer.NodeWeight(decision.TargetNodes[0]); got != 1 {
		t.Errorf("weight of new node = %d, want 1", got)
	}
}

func TestScaleUpBlockedAtMaxNodes(t *testing.T) {
	config := DefaultConfig()
	config.MaxNodes = 3
	controller, balancer := newTestController(config, 3)
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 95, 95, 10, 0)
	}

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, decision := range decisions {
		if decision.Action == model.SCALE_UP {
			t.Error("scale_up proposed at max node count")
		}
	}
}

func TestNoScaleDownAtMinNodes(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 2)
	setLoad(balancer, "a", 0, 0, 0, 0)
	setLoad(balancer, "b", 0, 0, 0, 0)

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 0 {
		t.Fatalf("decisions at min node count = %v, want none", decisions)
	}
}

func TestScaleDownRemovesColdestNode(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 3)
	setLoad(balancer, "a", 5, 10, 0, 0)
	setLoad(balancer, "b", 10, 10, 0, 0)
	setLoad(balancer, "c", 12, 10, 0, 0)
	for _, nodeId := range []string{"a", "b", "c"} {
		balancer.SetNodeWeight(nodeId, 2)
	}

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Fatalf("len(decisions) = %d, want 1", len(decisions))
	}

	decision := decisions[0]
	if decision.Action != model.SCALE_DOWN {
		t.Fatalf("action = %s, want scale_down", decision.Action)
	}
	if decision.Status != model.SCALING_COMPLETED {
		t.Errorf("status = %s, want completed", decision.Status)
	}
	if len(decision.TargetNodes) != 1 || decision.TargetNodes[0] != "a" {
		t.Errorf("target_nodes = %v, want [a]", decision.TargetNodes)
	}
}

func TestScaleDownFailsWithoutCandidate(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 3)
	// idle enough to scale down on average, but every node carries too much
	// memory to qualify for removal
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 40, 45, 0, 0)
	}

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Fatalf("len(decisions) = %d, want 1", len(decisions))
	}

	decision := decisions[0]
	if decision.Action != model.SCALE_DOWN {
		t.Fatalf("action = %s, want scale_down", decision.Action)
	}
	if decision.Status != model.SCALING_FAILED {
		t.Errorf("status = %s, want failed", decision.Status)
	}
	if !strings.Contains(decision.Reason, "no underutilized node") {
		t.Errorf("reason = %q, want failure cause recorded", decision.Reason)
	}
}

func TestRedistributeBoundary(t *testing.T) {
	// population stdev of {10, 50} is exactly 20.0 and must not trigger
	controller, balancer := newTestController(DefaultConfig(), 2)
	setLoad(balancer, "a", 10, 0, 0, 0)
	setLoad(balancer, "b", 50, 0, 0, 0)

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 0 {
		t.Fatalf("decisions at stdev 20.0 = %v, want none", decisions)
	}
}

func TestRedistributeSwitchesStrategy(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 2)
	if err := balancer.SetStrategy(common.STRATEGY_ROUND_ROBIN); err != nil {
		t.Fatal(err)
	}
	setLoad(balancer, "a", 10, 0, 0, 0)
	setLoad(balancer, "b", 51, 0, 0, 0)

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Fatalf("len(decisions) = %d, want 1", len(decisions))
	}
	if decisions[0].Action != model.REDISTRIBUTE_LOAD {
		t.Fatalf("action = %s, want redistribute_load", decisions[0].Action)
	}
	if got := balancer.Strategy(); got != common.STRATEGY_RESOURCE_BASED {
		t.Errorf("strategy after redistribute = %q, want %q", got, common.STRATEGY_RESOURCE_BASED)
	}
}

func TestCooldownSuppressesRepeatScaleUp(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 3)
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	first, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("first cycle decisions = %d, want 1", len(first))
	}

	second, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("second cycle proposed %v during cooldown, want none", second)
	}
}

func TestZeroCooldownAllowsRepeatScaleUp(t *testing.T) {
	config := DefaultConfig()
	config.ScaleUpCooldown = 0
	controller, balancer := newTestController(config, 3)
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	for i := 0; i < 2; i++ {
		decisions, err := controller.EvaluateOnce(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(decisions) != 1 {
			t.Fatalf("cycle %d decisions = %d, want 1", i, len(decisions))
		}
	}
}

func TestDeniedDecisionFails(t *testing.T) {
	balancer := balance.NewBalancer(hclog.NewNullLogger())
	controller := NewController(DefaultConfig(), balancer, &stubNodeCounter{count: 3}, &denyAuthorizer{}, monitor.NewNopRecorder(), nil, hclog.NewNullLogger())
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	decisions, err := controller.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Fatalf("len(decisions) = %d, want 1", len(decisions))
	}

	decision := decisions[0]
	if decision.Status != model.SCALING_FAILED {
		t.Errorf("status = %s, want failed", decision.Status)
	}
	if !strings.Contains(decision.Reason, "permission denied") {
		t.Errorf("reason = %q, want permission denial recorded", decision.Reason)
	}
	if len(decision.TargetNodes) != 0 {
		t.Errorf("target_nodes = %v, want none for a denied decision", decision.TargetNodes)
	}
}

func TestSummaryAndStatistics(t *testing.T) {
	controller, balancer := newTestController(DefaultConfig(), 3)
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	if _, err := controller.EvaluateOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	summary := controller.Summary()
	if summary.TotalDecisions != 1 {
		t.Errorf("TotalDecisions = %d, want 1", summary.TotalDecisions)
	}
	if summary.CompletedDecisions != 1 {
		t.Errorf("CompletedDecisions = %d, want 1", summary.CompletedDecisions)
	}
	if summary.AverageImpact != 0.3 {
		t.Errorf("AverageImpact = %v, want 0.3", summary.AverageImpact)
	}
	if summary.CurrentNodes != 3 {
		t.Errorf("CurrentNodes = %d, want 3", summary.CurrentNodes)
	}
	if len(summary.ScalingHistory) != 1 {
		t.Fatalf("len(ScalingHistory) = %d, want 1", len(summary.ScalingHistory))
	}
	if summary.ScalingHistory[0].Action != "scale_up" {
		t.Errorf("history action = %q, want scale_up", summary.ScalingHistory[0].Action)
	}
	if summary.BalancerStats.TrackedNodes != 3 {
		t.Errorf("BalancerStats.TrackedNodes = %d, want 3", summary.BalancerStats.TrackedNodes)
	}

	statistics := controller.DecisionStatistics()
	if statistics.DecisionsByAction["scale_up"] != 1 {
		t.Errorf("decisions_by_action = %v, want scale_up: 1", statistics.DecisionsByAction)
	}
	if statistics.DecisionsByStatus["completed"] != 1 {
		t.Errorf("decisions_by_status = %v, want completed: 1", statistics.DecisionsByStatus)
	}
}

func TestDecisionsNewestFirst(t *testing.T) {
	config := DefaultConfig()
	config.ScaleUpCooldown = 0
	controller, balancer := newTestController(config, 3)
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	for i := 0; i < 2; i++ {
		if _, err := controller.EvaluateOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	all := controller.Decisions(0)
	if len(all) != 2 {
		t.Fatalf("Decisions(0) = %d entries, want 2", len(all))
	}
	if all[0].CreatedAt.Before(all[1].CreatedAt) {
		t.Error("Decisions(0) not ordered newest first")
	}

	limited := controller.Decisions(1)
	if len(limited) != 1 {
		t.Fatalf("Decisions(1) = %d entries, want 1", len(limited))
	}
	if limited[0].Id != all[0].Id {
		t.Errorf("Decisions(1)[0] = %s, want newest %s", limited[0].Id, all[0].Id)
	}
}

func TestEvaluateOnceCanceledContext(t *testing.T) {
	controller, _ := newTestController(DefaultConfig(), 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := controller.EvaluateOnce(ctx); err == nil {
		t.Error("EvaluateOnce with canceled context = nil error")
	}
}

func TestDecisionEventsPublished(t *testing.T) {
	eventBus := events.NewEventBus()
	subscriber := make(chan events.Event, 8)
	eventBus.Subscribe(common.SCALING_DECISION_EVENT_TYPE, subscriber)

	balancer := balance.NewBalancer(hclog.NewNullLogger())
	controller := NewController(DefaultConfig(), balancer, &stubNodeCounter{count: 3}, authz.NewAllowAllAuthorizer(), monitor.NewNopRecorder(), eventBus, hclog.NewNullLogger())
	for _, nodeId := range []string{"a", "b", "c"} {
		setLoad(balancer, nodeId, 90, 50, 10, 0)
	}

	if _, err := controller.EvaluateOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-subscriber:
		data, ok := event.Data.(events.ScalingDecisionEvent)
		if !ok {
			t.Fatalf("event data has type %T", event.Data)
		}
		if data.Decision.Action != model.SCALE_UP {
			t.Errorf("event action = %s, want scale_up", data.Decision.Action)
		}
	case <-time.After(time.Second):
		t.Fatal("no scaling decision event received")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	config := DefaultConfig()
	config.TickInterval = 10 * time.Millisecond
	controller, _ := newTestController(config, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	if !controller.IsActive() {
		t.Error("IsActive() = false while loop is running")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if controller.IsActive() {
		t.Error("IsActive() = true after Run returned")
	}
}
