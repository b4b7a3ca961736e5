package k8smember

import (
	"context"
	"strings"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

const capabilityLabelPrefix = "noodle/cap."
const archLabel = "kubernetes.io/arch"

// Provider reads mesh membership from the Kubernetes node inventory. A node
// counts as a member while it is Ready and the metrics API reports usage
// for it; capabilities come from noodle/cap.* labels plus the node
// architecture.
type Provider struct {
	config           *rest.Config
	clientset        *kubernetes.Clientset
	metricsClientset *metricsv.Clientset
	logger           hclog.Logger
	eventBus         *events.EventBus
	cronScheduler    *cron.Cron
	availableNodes   map[string]*model.NodeIdentity
}

func NewProvider(kubeconfigPath string, eventBus *events.EventBus, logger hclog.Logger) (*Provider, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	metricsClientset, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:           config,
		clientset:        clientset,
		metricsClientset: metricsClientset,
		logger:           logger,
		eventBus:         eventBus,
		cronScheduler:    cron.New(cron.WithSeconds()),
		availableNodes:   make(map[string]*model.NodeIdentity),
	}, nil
}

func (provider *Provider) GetAllNodes(initialRequest bool) (map[string]*model.NodeIdentity, error) {
	nodesCoreList, err := provider.clientset.CoreV1().Nodes().List(context.Background(), metav1.ListOptions{})
	if err != nil {
		provider.logger.Error("Failed to retrieve cluster nodes", "error", err)
		return nil, err
	}

	nodeMetricsList, err := provider.metricsClientset.MetricsV1beta1().NodeMetricses().List(context.Background(), metav1.ListOptions{})
	if err != nil {
		provider.logger.Error("Failed to retrieve node metrics", "error", err)
		return nil, err
	}

	nodeMetricsMap := make(map[string]v1beta1.NodeMetrics)
	for _, nodeMetric := range nodeMetricsList.Items {
		nodeMetricsMap[nodeMetric.Name] = nodeMetric
	}

	nodes := make(map[string]*model.NodeIdentity)
	for _, nodeCore := range nodesCoreList.Items {
		// a node without metrics is not serving yet
		if _, exists := nodeMetricsMap[nodeCore.Name]; !exists {
			continue
		}
		if !isNodeReady(nodeCore) {
			continue
		}

		node := nodeToIdentity(nodeCore)
		nodes[node.Id] = node

		if initialRequest {
			provider.availableNodes[node.Id] = node
		}
	}

	return nodes, nil
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
		return
	}

	event := common.GetNodeStateChangeEvent(provider.availableNodes, availableNodesNew)
	if (event != events.Event{}) {
		provider.eventBus.Publish(event)
	}

	provider.availableNodes = availableNodesNew
}

// HELPER METHODS

func isNodeReady(nodeCore corev1.Node) bool {
	for _, condition := range nodeCore.Status.Conditions {
		if condition.Type == corev1.NodeReady {
			return condition.Status == corev1.ConditionTrue
		}
	}

	return false
}

func nodeToIdentity(nodeCore corev1.Node) *model.NodeIdentity {
	return &model.NodeIdentity{
		Id:           nodeCore.Name,
		Hostname:     getHostname(nodeCore),
		Capabilities: labelsToCapabilities(nodeCore.Labels),
	}
}

func labelsToCapabilities(labels map[string]string) map[string]string {
	capabilities := make(map[string]string)
	for key, value := range labels {
		if strings.HasPrefix(key, capabilityLabelPrefix) {
			capabilities[strings.TrimPrefix(key, capabilityLabelPrefix)] = value
		}
	}
	if arch, found := labels[archLabel]; found {
		capabilities["arch"] = arch
	}

	return capabilities
}

func getHostname(nodeCore corev1.Node) string {
	for _, address := range nodeCore.Status.Addresses {
		if address.Type == corev1.NodeHostName {
			return address.Address
		}
	}
	for _, address := range nodeCore.Status.Addresses {
		if address.Type == corev1.NodeInternalIP {
			return address.Address
		}
	}

	return nodeCore.Name
}
