package model

// NodeIdentity is what the membership provider knows about a node: who it is
// and what it can do. Metrics are collected separately.
type NodeIdentity struct {
	Id           string            `json:"node_id"`
	Hostname     string            `json:"hostname"`
	Capabilities map[string]string `json:"capabilities"`
}

// HasCapabilities reports whether every required capability name is present.
func (n NodeIdentity) HasCapabilities(required []string) bool {
	for _, capability := range required {
		if _, found := n.Capabilities[capability]; !found {
			return false
		}
	}
	return true
}
