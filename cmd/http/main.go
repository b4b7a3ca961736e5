package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cubic461/Noodle-Core-sub003/internal/authz"
	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/config"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/member"
	k8smember "github.com/cubic461/Noodle-Core-sub003/internal/member/k8s"
	staticmember "github.com/cubic461/Noodle-Core-sub003/internal/member/static"
	"github.com/cubic461/Noodle-Core-sub003/internal/mesh"
	"github.com/cubic461/Noodle-Core-sub003/internal/monitor"
	"github.com/cubic461/Noodle-Core-sub003/internal/probe"
	"github.com/cubic461/Noodle-Core-sub003/internal/scale"
	"github.com/cubic461/Noodle-Core-sub003/internal/server"
	"github.com/cubic461/Noodle-Core-sub003/internal/transport"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// .env values feed the NOODLE_* overrides picked up by config.Load
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	_ = os.MkdirAll(filepath.Dir(cfg.Logging.FilePath), 0777)
	logFile, err := os.OpenFile(cfg.Logging.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			panic(err)
		}
	}()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "noodle-mesh",
		Level:  hclog.LevelFromString(cfg.Logging.Level),
		Output: io.MultiWriter(os.Stdout, logFile),
	})

	if cfg.Mesh.NodeId == "" {
		cfg.Mesh.NodeId = fmt.Sprintf("node_%s", uuid.NewString()[:8])
		logger.Info(fmt.Sprintf("No node ID configured, generated %s", cfg.Mesh.NodeId))
	}

	eventBus := events.NewEventBus()

	var provider member.INodeProvider
	switch cfg.Membership.Provider {
	case common.MEMBER_PROVIDER_KUBERNETES:
		k8sProvider, err := k8smember.NewProvider(cfg.Membership.KubeconfigPath, eventBus, logger.Named("member"))
		if err != nil {
			logger.Error("Error while initializing kubernetes membership", "error", err)
			return
		}
		provider = k8sProvider
	default:
		provider = staticmember.NewProvider(cfg.Membership.ClusterFilePath, eventBus, logger.Named("member"))
	}

	var messenger transport.IMessenger
	var wsMessenger *transport.WsMessenger
	switch cfg.Messaging.Transport {
	case common.TRANSPORT_WEBSOCKET:
		wsMessenger = transport.NewWsMessenger(cfg.Mesh.NodeId, logger.Named("transport"))
		messenger = wsMessenger
	default:
		messenger = transport.NewInProcMessenger(cfg.Mesh.NodeId, logger.Named("transport"))
	}

	var recorder monitor.IMetricsRecorder
	var promRecorder *monitor.PrometheusRecorder
	if cfg.Monitoring.Prometheus {
		promRecorder = monitor.NewPrometheusRecorder(logger.Named("monitor"))
		recorder = promRecorder
	} else {
		recorder = monitor.NewNopRecorder()
	}

	meshConfig := mesh.DefaultConfig()
	meshConfig.NodeId = cfg.Mesh.NodeId
	meshConfig.UpdateInterval = cfg.Mesh.UpdateInterval()
	meshConfig.MaxLatency = cfg.Mesh.MaxLatencyMs
	meshConfig.MinQuality = cfg.Mesh.MinQuality
	meshConfig.Strategy = cfg.Balancer.Strategy

	scalingConfig := scale.DefaultConfig()
	scalingConfig.CpuThreshold = cfg.Scaling.CpuThreshold
	scalingConfig.MemoryThreshold = cfg.Scaling.MemoryThreshold
	scalingConfig.RequestThreshold = cfg.Scaling.RequestThreshold
	scalingConfig.ResponseTimeThreshold = cfg.Scaling.ResponseTimeThresholdMs
	scalingConfig.ErrorRateThreshold = cfg.Scaling.ErrorRateThreshold
	scalingConfig.MinNodes = cfg.Scaling.MinNodes
	scalingConfig.MaxNodes = cfg.Scaling.MaxNodes
	scalingConfig.ScaleUpCooldown = cfg.Scaling.ScaleUpCooldown()
	scalingConfig.ScaleDownCooldown = cfg.Scaling.ScaleDownCooldown()
	scalingConfig.TickInterval = cfg.Scaling.EvaluationInterval()
	scalingConfig.AutoScalingEnabled = cfg.Scaling.Enabled

	orch, err := mesh.NewOrchestrator(meshConfig, scalingConfig, provider, probe.NewSimulatedSource(), messenger,
		authz.NewAllowAllAuthorizer(), recorder, eventBus, logger.Named("mesh"))
	if err != nil {
		logger.Error("Error while initializing mesh orchestrator", "error", err)
		return
	}

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		logger.Error("Error while starting mesh orchestrator", "error", err)
		return
	}

	handler := server.NewHandler(logger.Named("http"), orch)
	defaultRouter := server.NewRouter(handler)

	if wsMessenger != nil {
		defer wsMessenger.Close()
		defaultRouter.Handle("/mesh/ws", wsMessenger.Handler())
		for _, peerUrl := range cfg.Messaging.Peers {
			if err := wsMessenger.Connect(ctx, peerUrl); err != nil {
				logger.Warn(fmt.Sprintf("Could not reach mesh peer %s", peerUrl), "error", err)
			}
		}
	}
	if promRecorder != nil {
		defaultRouter.Handle("/metrics", promRecorder.Handler())
	}

	server.StartHttpServer(logger, cfg.Server.Address(), defaultRouter)

	orch.Stop()
}
