// Package notify pushes fleet events to a Discord-compatible webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/craftops/fleet/pkg/logger"
)

// Event identifies the kind of fleet event being announced
type Event string

const (
	EventServerStarted   Event = "server_started"
	EventServerStopped   Event = "server_stopped"
	EventBackupCreated   Event = "backup_created"
	EventBackupFailed    Event = "backup_failed"
	EventUpgradeComplete Event = "upgrade_complete"
	EventUpgradeFailed   Event = "upgrade_failed"
	EventHealthChanged   Event = "health_changed"
	EventPluginUpdates   Event = "plugin_updates"
)

// EventData carries everything needed to render one announcement
type EventData struct {
	Event      Event
	ServerID   string
	ServerName string
	Message    string
	Timestamp  time.Time
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Footer      *discordFoot `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type discordFoot struct {
	Text string `json:"text"`
}

// WebhookNotifier posts events to a single operations webhook. All sends are
// fire-and-forget; a dead webhook never blocks or fails fleet operations.
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a webhook URL is configured
func (n *WebhookNotifier) Enabled() bool {
	return n.webhookURL != ""
}

// Send announces an event. It returns immediately; delivery happens on a
// background goroutine and failures are only logged.
func (n *WebhookNotifier) Send(data EventData) {
	if !n.Enabled() {
		return
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now()
	}

	go func() {
		payload := discordPayload{
			Username: "CraftOps Fleet",
			Embeds:   []discordEmbed{buildEmbed(data)},
		}
		if err := n.post(payload); err != nil {
			logger.Warn("Webhook delivery failed", map[string]interface{}{
				"event":     string(data.Event),
				"server_id": data.ServerID,
				"error":     err.Error(),
			})
			return
		}
		logger.Debug("Webhook sent", map[string]interface{}{
			"event":     string(data.Event),
			"server_id": data.ServerID,
		})
	}()
}

// Notify adapts backup outcomes onto Send, satisfying the backup engine's
// notifier interface.
func (n *WebhookNotifier) Notify(serverID, serverName, trigger, sizeText string, success bool) {
	data := EventData{
		ServerID:   serverID,
		ServerName: serverName,
		Timestamp:  time.Now(),
	}
	if success {
		data.Event = EventBackupCreated
		data.Message = fmt.Sprintf("Trigger: %s, size: %s", trigger, sizeText)
	} else {
		data.Event = EventBackupFailed
		data.Message = fmt.Sprintf("Trigger: %s", trigger)
	}
	n.Send(data)
}

func buildEmbed(data EventData) discordEmbed {
	var title, description string
	var color int

	switch data.Event {
	case EventServerStarted:
		title = "🟢 Server Started"
		description = fmt.Sprintf("Server **%s** is now online.", data.ServerName)
		color = 3066993 // Green
	case EventServerStopped:
		title = "🔴 Server Stopped"
		description = fmt.Sprintf("Server **%s** has been stopped.", data.ServerName)
		color = 15158332 // Red
	case EventBackupCreated:
		title = "💾 Backup Created"
		description = fmt.Sprintf("Backup created for **%s**.", data.ServerName)
		color = 3447003 // Blue
	case EventBackupFailed:
		title = "⚠️ Backup Failed"
		description = fmt.Sprintf("Backup failed for **%s**.", data.ServerName)
		color = 15105570 // Dark Red
	case EventUpgradeComplete:
		title = "⬆️ Version Upgrade Complete"
		description = fmt.Sprintf("Server **%s** was upgraded.", data.ServerName)
		color = 3066993 // Green
	case EventUpgradeFailed:
		title = "💥 Version Upgrade Failed"
		description = fmt.Sprintf("Upgrade failed for **%s**.", data.ServerName)
		color = 15105570 // Dark Red
	case EventHealthChanged:
		title = "🩺 Health State Changed"
		description = fmt.Sprintf("Server **%s** changed health state.", data.ServerName)
		color = 15844367 // Gold
	case EventPluginUpdates:
		title = "🔌 Plugin Updates Available"
		description = fmt.Sprintf("Updates found for **%s**.", data.ServerName)
		color = 3447003 // Blue
	default:
		title = "📢 Fleet Event"
		description = fmt.Sprintf("Event on server **%s**.", data.ServerName)
		color = 3447003 // Blue
	}

	if data.Message != "" {
		description += fmt.Sprintf("\n\n%s", data.Message)
	}

	return discordEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer: &discordFoot{
			Text: "CraftOps Fleet",
		},
		Timestamp: data.Timestamp.Format(time.RFC3339),
	}
}

func (n *WebhookNotifier) post(payload discordPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
