package notify

// Dispatcher fans out events to matching webhook configurations.
type Dispatcher struct {
	configs []WebhookConfig
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty; Dispatch on a nil Dispatcher is a no-op.
func NewDispatcher(configs []WebhookConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks subscribed to its type.
// Fires goroutines — does not block the caller. Delivery is best
// effort; the audit log remains the durable record.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if matches(cfg.Events, event.Type) {
			go Send(cfg, event)
		}
	}
}

func matches(events []string, eventType string) bool {
	for _, e := range events {
		if e == eventType {
			return true
		}
	}
	return false
}
