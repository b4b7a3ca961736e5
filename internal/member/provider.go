package member

import (
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
)

// INodeProvider is the membership source of truth for the mesh. GetAllNodes
// with initialRequest caches the result as the baseline the notifier diffs
// against; the notifier publishes NodeStateChanged events on the bus until
// StopAllNotifiers is called.
type INodeProvider interface {
	GetAllNodes(initialRequest bool) (map[string]*model.NodeIdentity, error)
	StartNodeStateChangeNotifier()
	StopAllNotifiers()
}
