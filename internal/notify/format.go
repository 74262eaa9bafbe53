package notify

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Event:* %s", event.Type)},
	}
	if event.Path != "" {
		fields = append(fields,
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Path:* %s", event.Path)},
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Kind:* %s", event.Kind)})
	}
	if event.Target != "" {
		fields = append(fields,
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Target:* %s", event.Target)},
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Alert:* %s", event.Alert)})
	}
	if event.Detail != "" {
		fields = append(fields,
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Detail:* %s", event.Detail)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("driftwatch: %s", event.Type),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "info"
	switch event.Type {
	case EventCriticalDrift, EventRemediationFailed:
		severity = "critical"
	case EventDrift:
		severity = "warning"
	}

	summary := fmt.Sprintf("driftwatch %s", event.Type)
	if event.Path != "" {
		summary = fmt.Sprintf("driftwatch %s: %s", event.Type, event.Path)
	} else if event.Target != "" {
		summary = fmt.Sprintf("driftwatch %s: %s on %s", event.Type, event.Alert, event.Target)
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  summary,
			"severity": severity,
			"source":   "driftwatch",
			"custom_details": map[string]any{
				"path":    event.Path,
				"kind":    event.Kind,
				"target":  event.Target,
				"alert":   event.Alert,
				"task_id": event.TaskID,
				"detail":  event.Detail,
			},
		},
	}
	return json.Marshal(payload)
}
