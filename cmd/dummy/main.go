package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/authz"
	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	staticmember "github.com/cubic461/Noodle-Core-sub003/internal/member/static"
	"github.com/cubic461/Noodle-Core-sub003/internal/mesh"
	"github.com/cubic461/Noodle-Core-sub003/internal/monitor"
	"github.com/cubic461/Noodle-Core-sub003/internal/probe"
	"github.com/cubic461/Noodle-Core-sub003/internal/scale"
	"github.com/cubic461/Noodle-Core-sub003/internal/transport"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// Demo run against a static cluster file: the mesh syncs simulated members,
// collects simulated metrics and reports routes and scaling decisions until
// interrupted.
func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "noodle-mesh",
		Level: hclog.LevelFromString("DEBUG"),
	})

	clusterFilePath := "configs/cluster/cluster.csv"
	if len(os.Args) == 2 {
		clusterFilePath = os.Args[1]
	}

	eventBus := events.NewEventBus()

	decisionEvents := make(chan events.Event, 8)
	eventBus.Subscribe(common.SCALING_DECISION_EVENT_TYPE, decisionEvents)
	go func() {
		for event := range decisionEvents {
			decisionEvent, ok := event.Data.(events.ScalingDecisionEvent)
			if !ok {
				continue
			}
			decision := decisionEvent.Decision
			logger.Info(fmt.Sprintf("Scaling decision %s finished as %s: %s", decision.Id, decision.Status, decision.Reason))
		}
	}()

	provider := staticmember.NewProvider(clusterFilePath, eventBus, logger.Named("member"))
	messenger := transport.NewInProcMessenger("node_demo", logger.Named("transport"))

	meshConfig := mesh.DefaultConfig()
	meshConfig.NodeId = "node_demo"
	meshConfig.UpdateInterval = 3 * time.Second

	scalingConfig := scale.DefaultConfig()
	scalingConfig.TickInterval = 10 * time.Second

	orch, err := mesh.NewOrchestrator(meshConfig, scalingConfig, provider, probe.NewSimulatedSource(), messenger,
		authz.NewAllowAllAuthorizer(), monitor.NewNopRecorder(), eventBus, logger.Named("mesh"))
	if err != nil {
		logger.Error("Error creating orchestrator", "error", err)
		return
	}

	if err := orch.Start(context.Background()); err != nil {
		logger.Error("Error starting orchestrator", "error", err)
		return
	}

	scheduler := cron.New(cron.WithSeconds())
	_, err = scheduler.AddFunc("@every 5s", func() {
		nodeIds := orch.Graph().NodeIds()
		if len(nodeIds) >= 2 {
			if path, found := orch.FindRoute(nodeIds[0], nodeIds[len(nodeIds)-1]); found {
				logger.Info(fmt.Sprintf("Route %s -> %s: %v", nodeIds[0], nodeIds[len(nodeIds)-1], path))
			}
		}

		if nodeId, found := orch.BestNode(common.TASK_TYPE_AI_INFERENCE, nil, nil); found {
			logger.Info(fmt.Sprintf("Best node for %s: %s", common.TASK_TYPE_AI_INFERENCE, nodeId))
		}

		stats := orch.Stats()
		logger.Info(fmt.Sprintf("Mesh stats: %d node(s), %d edge(s), %d topology update(s), %d metrics update(s)",
			stats.NodeCount, stats.EdgeCount, stats.TopologyUpdates, stats.MetricsUpdates))

		if forecast, err := orch.Scaler().Forecast(20); err == nil {
			report := forecast.Report(5)
			logger.Info(fmt.Sprintf("Forecast %d tick(s) ahead: cpu %.1f%%, memory %.1f%%", report.TicksAhead,
				report.PredictedCpu, report.PredictedMemory))
		}
	})
	if err != nil {
		logger.Error("Error scheduling demo reporter", "error", err)
		return
	}
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Got signal:", "signal", sig)

	scheduler.Stop()
	orch.Stop()
}
