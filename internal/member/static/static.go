package staticmember

import (
	"fmt"
	"strings"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// Provider serves mesh membership from a cluster CSV file. Each record is
// "id,hostname,capabilities" where capabilities holds key=value pairs
// separated by semicolons and may be empty. The notifier re-reads the file
// every second, so edits roll through the mesh without a restart.
type Provider struct {
	clusterFilePath string
	logger          hclog.Logger
	eventBus        *events.EventBus
	cronScheduler   *cron.Cron
	availableNodes  map[string]*model.NodeIdentity
}

func NewProvider(clusterFilePath string, eventBus *events.EventBus, logger hclog.Logger) *Provider {
	return &Provider{
		clusterFilePath: clusterFilePath,
		logger:          logger,
		eventBus:        eventBus,
		cronScheduler:   cron.New(cron.WithSeconds()),
		availableNodes:  make(map[string]*model.NodeIdentity),
	}
}

func (provider *Provider) GetAllNodes(initialRequest bool) (map[string]*model.NodeIdentity, error) {
	records, err := common.ReadCsvFile(provider.clusterFilePath)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*model.NodeIdentity, len(records))
	for _, record := range records {
		if len(record) != 3 {
			return nil, fmt.Errorf("incorrect cluster record: %v", record)
		}

		node := &model.NodeIdentity{
			Id:           strings.TrimSpace(record[0]),
			Hostname:     strings.TrimSpace(record[1]),
			Capabilities: parseCapabilities(record[2]),
		}
		if node.Id == "" {
			return nil, fmt.Errorf("cluster record without node id: %v", record)
		}

		nodes[node.Id] = node
	}

	if initialRequest {
		provider.availableNodes = nodes
	}

	return nodes, nil
}

// parseCapabilities splits "gpu=cuda;storage" into a capability map; a pair
// without a value marks bare capability presence.
func parseCapabilities(field string) map[string]string {
	capabilities := make(map[string]string)
	for _, pair := range strings.Split(field, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, found := strings.Cut(pair, "=")
		if found {
			capabilities[strings.TrimSpace(key)] = strings.TrimSpace(value)
		} else {
			capabilities[pair] = ""
		}
	}

	return capabilities
}

func (provider *Provider) StartNodeStateChangeNotifier() {
	provider.cronScheduler.AddFunc("@every 1s", provider.notifyNodeStateChanges)

	provider.cronScheduler.Start()
}

func (provider *Provider) StopAllNotifiers() {
	provider.cronScheduler.Stop()
}

func (provider *Provider) notifyNodeStateChanges() {
	availableNodesNew, err := provider.GetAllNodes(false)
	if err != nil {
		provider.logger.Error("Failed to refresh cluster file", "error", err)
		return
	}

	event := common.GetNodeStateChangeEvent(provider.availableNodes, availableNodesNew)
	if (event != events.Event{}) {
		provider.eventBus.Publish(event)
	}

	provider.availableNodes = availableNodesNew
}
