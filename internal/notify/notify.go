// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify delivers studio notifications by email.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is a single outgoing email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Notifier sends messages to the studio.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Render executes the named email template with data.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// LogNotifier logs messages instead of sending them. Used when no
// email provider is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that writes to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message envelope.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("notification not sent, email provider not configured",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
