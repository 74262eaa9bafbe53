// Package notify pushes drift and remediation outcomes to operator
// webhook endpoints. Complementary to the pull-based /metrics surface:
// metrics drive alerting policy, notifications drive humans.
package notify

// Event names a notification can subscribe to.
const (
	EventDrift                = "drift"
	EventCriticalDrift        = "critical_drift"
	EventRemediationFailed    = "remediation_failed"
	EventRemediationSucceeded = "remediation_succeeded"
)

// WebhookConfig defines one notification destination.
type WebhookConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`   // drift events
	Kind      string `json:"kind,omitempty"`   // drift events
	Target    string `json:"target,omitempty"` // remediation events
	Alert     string `json:"alert,omitempty"`  // remediation events
	TaskID    string `json:"task_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}
