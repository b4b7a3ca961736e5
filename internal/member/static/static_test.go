package staticmember

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/events"
	"github.com/hashicorp/go-hclog"
)

func writeClusterFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGetAllNodesParsesClusterFile(t *testing.T) {
	clusterFile := filepath.Join(t.TempDir(), "cluster.csv")
	writeClusterFile(t, clusterFile, "n1,host-a,gpu=cuda;storage\nn2,host-b,\n")

	provider := NewProvider(clusterFile, events.NewEventBus(), hclog.NewNullLogger())
	nodes, err := provider.GetAllNodes(true)
	if err != nil {
		t.Fatal(err)
	}

	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}

	n1, found := nodes["n1"]
	if !found {
		t.Fatal("nodes missing n1")
	}
	if n1.Hostname != "host-a" {
		t.Errorf("hostname = %q, want host-a", n1.Hostname)
	}
	if got := n1.Capabilities["gpu"]; got != "cuda" {
		t.Errorf("capability gpu = %q, want cuda", got)
	}
	if _, found := n1.Capabilities["storage"]; !found {
		t.Error("bare capability storage not recorded")
	}

	n2 := nodes["n2"]
	if len(n2.Capabilities) != 0 {
		t.Errorf("n2 capabilities = %v, want empty", n2.Capabilities)
	}
}

func TestGetAllNodesRejectsMalformedRecord(t *testing.T) {
	clusterFile := filepath.Join(t.TempDir(), "cluster.csv")
	writeClusterFile(t, clusterFile, "n1,host-a\n")

	provider := NewProvider(clusterFile, events.NewEventBus(), hclog.NewNullLogger())
	if _, err := provider.GetAllNodes(true); err == nil {
		t.Error("malformed record accepted, want error")
	}
}

func TestNotifierPublishesMembershipChanges(t *testing.T) {
	clusterFile := filepath.Join(t.TempDir(), "cluster.csv")
	writeClusterFile(t, clusterFile, "n1,host-a,\nn2,host-b,\n")

	eventBus := events.NewEventBus()
	subscriber := make(chan events.Event, 8)
	eventBus.Subscribe(common.NODE_STATE_CHANGE_EVENT_TYPE, subscriber)

	provider := NewProvider(clusterFile, eventBus, hclog.NewNullLogger())
	if _, err := provider.GetAllNodes(true); err != nil {
		t.Fatal(err)
	}

	// unchanged file, no event
	provider.notifyNodeStateChanges()
	if len(subscriber) != 0 {
		t.Fatal("event published without a membership change")
	}

	writeClusterFile(t, clusterFile, "n1,host-a,\nn2,host-b,\nn3,host-c,\n")
	provider.notifyNodeStateChanges()

	select {
	case event := <-subscriber:
		change, ok := event.Data.(events.NodeStateChangeEvent)
		if !ok {
			t.Fatalf("event data has type %T", event.Data)
		}
		if len(change.NodesAdded) != 1 || change.NodesAdded[0].Id != "n3" {
			t.Errorf("NodesAdded = %v, want [n3]", change.NodesAdded)
		}
		if len(change.NodesRemoved) != 0 {
			t.Errorf("NodesRemoved = %v, want empty", change.NodesRemoved)
		}
	default:
		t.Fatal("no event published for added node")
	}

	writeClusterFile(t, clusterFile, "n2,host-b,\nn3,host-c,\n")
	provider.notifyNodeStateChanges()

	select {
	case event := <-subscriber:
		change := event.Data.(events.NodeStateChangeEvent)
		if len(change.NodesRemoved) != 1 || change.NodesRemoved[0].Id != "n1" {
			t.Errorf("NodesRemoved = %v, want [n1]", change.NodesRemoved)
		}
	default:
		t.Fatal("no event published for removed node")
	}
}

func TestNotifierStartStop(t *testing.T) {
	clusterFile := filepath.Join(t.TempDir(), "cluster.csv")
	writeClusterFile(t, clusterFile, "n1,host-a,\n")

	provider := NewProvider(clusterFile, events.NewEventBus(), hclog.NewNullLogger())
	if _, err := provider.GetAllNodes(true); err != nil {
		t.Fatal(err)
	}

	provider.StartNodeStateChangeNotifier()
	provider.StopAllNotifiers()
}
