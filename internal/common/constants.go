package common

// Task types
const TASK_TYPE_AI_INFERENCE = "ai_inference"
const TASK_TYPE_DATA_PROCESSING = "data_processing"
const TASK_TYPE_STORAGE = "storage"

// Balancing strategies
const STRATEGY_ROUND_ROBIN = "round_robin"
const STRATEGY_LEAST_CONNECTIONS = "least_connections"
const STRATEGY_LEAST_RESPONSE_TIME = "least_response_time"
const STRATEGY_RESOURCE_BASED = "resource_based"
const STRATEGY_WEIGHTED_ROUND_ROBIN = "weighted_round_robin"

// Mesh message types
const MESH_METRICS_MESSAGE_TYPE = "mesh_metrics"
const MESH_TOPOLOGY_MESSAGE_TYPE = "mesh_topology"

// Events
const NODE_STATE_CHANGE_EVENT_TYPE = "NodeStateChanged"
const SCALING_DECISION_EVENT_TYPE = "ScalingDecisionExecuted"

// Node states
const NODE_ADDED = "ADDED"
const NODE_REMOVED = "REMOVED"

// Membership providers
const MEMBER_PROVIDER_STATIC = "static"
const MEMBER_PROVIDER_KUBERNETES = "kubernetes"

// Messaging transports
const TRANSPORT_INPROC = "inproc"
const TRANSPORT_WEBSOCKET = "websocket"

// History bounds
const REQUEST_HISTORY_SIZE = 10000
const SCALING_HISTORY_SIZE = 1000
const METRICS_HISTORY_SIZE = 10000
