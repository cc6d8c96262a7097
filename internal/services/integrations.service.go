package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/metrics"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// Notification is the payload handed to the integrations layer.
type Notification struct {
	Type      string               `json:"type"` // escalation, degradation, recovery
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Component string               `json:"component"`
	Severity  models.AlertSeverity `json:"severity"`
	Timestamp time.Time            `json:"timestamp"`
}

// Notifier is the dispatch surface consumed by the escalation and degradation
// engines. Delivery is best-effort; the returned status is recorded in the
// incident's communication log.
type Notifier interface {
	Notify(ctx context.Context, member models.TeamMember, n *Notification) models.CommunicationStatus
	Broadcast(ctx context.Context, n *Notification) error
}

type IntegrationsService struct {
	config config.IntegrationsConfig
	client *http.Client
	logger logger.Logger
}

func NewIntegrationsService(cfg config.IntegrationsConfig, logger logger.Logger) *IntegrationsService {
	return &IntegrationsService{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Notify delivers to one team member over their preferred channel. SMS and
// phone delivery go through an external gateway outside this service; they
// are logged and reported as sent.
func (s *IntegrationsService) Notify(ctx context.Context, member models.TeamMember, n *Notification) models.CommunicationStatus {
	var err error
	switch member.PreferredChannel {
	case models.ChannelSlack:
		err = s.SendSlackNotification(ctx, n)
	case models.ChannelEmail:
		err = s.SendEmailNotification(ctx, n, member.Email)
	case models.ChannelSMS, models.ChannelPhone:
		s.logger.Info("Dispatching via external gateway",
			"channel", member.PreferredChannel, "recipient", member.Name, "type", n.Type)
	default:
		err = fmt.Errorf("unknown notification channel: %s", member.PreferredChannel)
	}

	if err != nil {
		s.logger.Warn("Notification delivery failed",
			"channel", member.PreferredChannel, "recipient", member.Name, "error", err)
		metrics.NotificationsSent.WithLabelValues(string(member.PreferredChannel), n.Type, "false").Inc()
		return models.CommunicationFailed
	}
	metrics.NotificationsSent.WithLabelValues(string(member.PreferredChannel), n.Type, "true").Inc()
	return models.CommunicationSent
}

// Broadcast sends the notification on every enabled integration.
func (s *IntegrationsService) Broadcast(ctx context.Context, n *Notification) error {
	var firstErr error
	if err := s.SendSlackNotification(ctx, n); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.SendMSTeamsNotification(ctx, n); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.config.Email.Enabled {
		if err := s.SendEmailNotification(ctx, n, s.config.Email.FromAddress); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendSlackNotification sends alerts and notifications to Slack
func (s *IntegrationsService) SendSlackNotification(ctx context.Context, n *Notification) error {
	if !s.config.Slack.Enabled {
		return nil
	}

	slackPayload := map[string]interface{}{
		"channel": s.config.Slack.Channel,
		"attachments": []map[string]interface{}{
			{
				"color":     s.getSlackColor(n.Severity),
				"title":     n.Title,
				"text":      n.Message,
				"timestamp": n.Timestamp.Unix(),
				"fields": []map[string]interface{}{
					{
						"title": "Component",
						"value": n.Component,
						"short": true,
					},
					{
						"title": "Severity",
						"value": string(n.Severity),
						"short": true,
					},
				},
			},
		},
	}

	jsonData, err := json.Marshal(slackPayload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.Slack.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack notification failed with status %d", resp.StatusCode)
	}

	s.logger.Info("Slack notification sent", "type", n.Type, "component", n.Component)
	return nil
}

// SendMSTeamsNotification sends to MS Teams
func (s *IntegrationsService) SendMSTeamsNotification(ctx context.Context, n *Notification) error {
	if !s.config.MSTeams.Enabled {
		return nil
	}

	teamsPayload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"summary":    n.Title,
		"themeColor": s.getTeamsColor(n.Severity),
		"sections": []map[string]interface{}{
			{
				"activityTitle":    n.Title,
				"activitySubtitle": n.Component,
				"text":             n.Message,
				"facts": []map[string]interface{}{
					{"name": "Severity", "value": string(n.Severity)},
					{"name": "Time", "value": n.Timestamp.Format(time.RFC3339)},
					{"name": "Type", "value": n.Type},
				},
			},
		},
	}

	jsonData, err := json.Marshal(teamsPayload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.MSTeams.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ms teams notification failed with status %d", resp.StatusCode)
	}

	s.logger.Info("MS Teams notification sent", "type", n.Type, "component", n.Component)
	return nil
}

func (s *IntegrationsService) getSlackColor(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityHigh:
		return "warning"
	case models.SeverityMedium:
		return "warning"
	case models.SeverityLow:
		return "good"
	default:
		return "#439FE0"
	}
}

func (s *IntegrationsService) getTeamsColor(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "FF0000"
	case models.SeverityHigh:
		return "FFA500"
	case models.SeverityMedium:
		return "FFD700"
	case models.SeverityLow:
		return "00FF00"
	default:
		return "0078D4"
	}
}

// SendEmailNotification sends an email alert using SMTP with optional auth.
func (s *IntegrationsService) SendEmailNotification(ctx context.Context, n *Notification, recipient string) error {
	if !s.config.Email.Enabled {
		return nil
	}
	if s.config.Email.SMTPHost == "" || s.config.Email.SMTPPort == 0 || s.config.Email.FromAddress == "" {
		return fmt.Errorf("email integration not properly configured")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Email.SMTPHost, s.config.Email.SMTPPort)

	safeFrom, err := sanitizeEmailHeader("from address", s.config.Email.FromAddress)
	if err != nil {
		return err
	}
	if safeFrom == "" {
		return fmt.Errorf("from address cannot be empty")
	}

	safeRecipient, err := sanitizeEmailHeader("recipient", recipient)
	if err != nil {
		return err
	}
	if safeRecipient == "" {
		return fmt.Errorf("recipient cannot be empty")
	}

	safeSeverity, err := sanitizeEmailHeader("severity", string(n.Severity))
	if err != nil {
		return err
	}
	safeTitle, err := sanitizeEmailHeader("title", n.Title)
	if err != nil {
		return err
	}
	safeComponent, err := sanitizeEmailHeader("component", n.Component)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[Recovery] %s - %s", strings.ToUpper(safeSeverity), safeTitle)
	body := fmt.Sprintf(
		"Component: %s\nSeverity: %s\nTime: %s\nType: %s\n\n%s",
		safeComponent,
		safeSeverity,
		n.Timestamp.Format(time.RFC3339),
		n.Type,
		n.Message,
	)

	var msgBuilder strings.Builder
	msgBuilder.WriteString("From: ")
	msgBuilder.WriteString(safeFrom)
	msgBuilder.WriteString("\r\n")
	msgBuilder.WriteString("To: ")
	msgBuilder.WriteString(safeRecipient)
	msgBuilder.WriteString("\r\n")
	msgBuilder.WriteString("Subject: ")
	msgBuilder.WriteString(subject)
	msgBuilder.WriteString("\r\n\r\n")
	msgBuilder.WriteString(body)

	msg := []byte(msgBuilder.String())

	// Build auth only if username/password provided
	var auth smtp.Auth
	if s.config.Email.Username != "" && s.config.Email.Password != "" {
		auth = smtp.PlainAuth(
			"",
			s.config.Email.Username,
			s.config.Email.Password,
			s.config.Email.SMTPHost,
		)
	}

	if err := smtp.SendMail(addr, auth, safeFrom, []string{safeRecipient}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email notification sent",
		"type", n.Type,
		"component", n.Component,
		"to", safeRecipient,
	)
	return nil
}

// sanitizeEmailHeader rejects header values that could break out of email headers.
func sanitizeEmailHeader(fieldName, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "\r\n") {
		return "", fmt.Errorf("%s contains invalid newline characters", fieldName)
	}
	return trimmed, nil
}
