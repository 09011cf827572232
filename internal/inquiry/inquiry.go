// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package inquiry records contact requests and newsletter sign-ups and
// notifies the studio about them.
package inquiry

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/notify"
)

// Key prefixes for stored records.
const (
	ContactPrefix    = "contact_"
	NewsletterPrefix = "newsletter_"
)

// NotSpecified replaces optional contact fields left empty.
const NotSpecified = "Not specified"

const (
	DefaultMailFrom = "VisCend Studio <noreply@resend.dev>"
	DefaultMailTo   = "viscendstudio@gmail.com"
)

// Contact is a stored project inquiry.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProjectType string `json:"projectType"`
	BudgetRange string `json:"budgetRange"`
	Message     string `json:"message"`
	SubmittedAt string `json:"submittedAt"`
}

// ContactInput holds the submitted contact form fields.
type ContactInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProjectType string `json:"projectType"`
	BudgetRange string `json:"budgetRange"`
	Message     string `json:"message"`
}

// Subscription is a stored newsletter sign-up.
type Subscription struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	SubscribedAt string `json:"subscribedAt"`
}

// ValidationError reports rejected input. Message is the API text and
// Key the translation key shown on HTML forms.
type ValidationError struct {
	Message string
	Key     string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

// Options configures a Service.
type Options struct {
	Store    kv.Store
	Notifier notify.Notifier
	Logger   *slog.Logger

	MailFrom string
	MailTo   []string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service handles inquiry submissions.
type Service struct {
	store    kv.Store
	notifier notify.Notifier
	logger   *slog.Logger
	from     string
	to       []string
	now      func() time.Time
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		from:     opts.MailFrom,
		to:       opts.MailTo,
		now:      opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	if s.from == "" {
		s.from = DefaultMailFrom
	}
	if len(s.to) == 0 {
		s.to = []string{DefaultMailTo}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SubmitContact validates, stores and announces a contact request.
// The record is stored before the notification is attempted; a failed
// notification is logged and does not fail the submission.
func (s *Service) SubmitContact(ctx context.Context, in ContactInput) (*Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)

	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Message: "Missing required fields",
			Key:     "contact.status.missing",
			Fields:  missing,
		}
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Contact{
		ID:          newID(ContactPrefix, now),
		Name:        in.Name,
		Email:       in.Email,
		ProjectType: orNotSpecified(in.ProjectType),
		BudgetRange: orNotSpecified(in.BudgetRange),
		Message:     in.Message,
		SubmittedAt: now.UTC().Format(time.RFC3339Nano),
	}

	if err := s.store.Set(ctx, c.ID, c); err != nil {
		return nil, fmt.Errorf("storing contact: %w", err)
	}
	s.logger.Info("contact submitted", "contact_id", c.ID, "project_type", c.ProjectType)

	html, err := notify.Render("contact.html", map[string]string{
		"Name":        c.Name,
		"Email":       c.Email,
		"ProjectType": c.ProjectType,
		"BudgetRange": c.BudgetRange,
		"Message":     c.Message,
		"Submitted":   now.UTC().Format(time.RFC1123),
	})
	if err != nil {
		s.logger.Error("failed to render contact email", "contact_id", c.ID, "error", err)
		return c, nil
	}
	s.notify(ctx, "New Project Inquiry from "+c.Name, html, "contact_id", c.ID)

	return c, nil
}

// Subscribe validates, stores and announces a newsletter sign-up.
func (s *Service) Subscribe(ctx context.Context, email string) (*Subscription, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{
			Message: "Email is required",
			Key:     "contact.status.missing",
			Fields:  []string{"email"},
		}
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	now := s.now()
	sub := &Subscription{
		ID:           newID(NewsletterPrefix, now),
		Email:        email,
		SubscribedAt: now.UTC().Format(time.RFC3339Nano),
	}

	if err := s.store.Set(ctx, sub.ID, sub); err != nil {
		return nil, fmt.Errorf("storing subscription: %w", err)
	}
	s.logger.Info("newsletter subscription", "newsletter_id", sub.ID)

	html, err := notify.Render("newsletter.html", map[string]string{
		"Email":      sub.Email,
		"Subscribed": now.UTC().Format(time.RFC1123),
	})
	if err != nil {
		s.logger.Error("failed to render newsletter email", "newsletter_id", sub.ID, "error", err)
		return sub, nil
	}
	s.notify(ctx, "New Newsletter Subscription", html, "newsletter_id", sub.ID)

	return sub, nil
}

// ListContacts returns every stored contact ordered by id.
func (s *Service) ListContacts(ctx context.Context) ([]Contact, error) {
	contacts, err := kv.GetAll[Contact](ctx, s.store, ContactPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	return contacts, nil
}

// ListSubscriptions returns every stored newsletter sign-up ordered by id.
func (s *Service) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	subs, err := kv.GetAll[Subscription](ctx, s.store, NewsletterPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

func (s *Service) notify(ctx context.Context, subject, html string, attrs ...any) {
	err := s.notifier.Send(ctx, notify.Message{
		From:    s.from,
		To:      s.to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		s.logger.Error("failed to send notification", append(attrs, "error", err)...)
	}
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{
			Message: "Invalid email address",
			Key:     "contact.status.invalid_email",
			Fields:  []string{"email"},
		}
	}
	return nil
}

func orNotSpecified(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NotSpecified
	}
	return v
}

// newID builds "<prefix><unix ms>_<9 alphanumerics>".
func newID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d_%s", prefix, now.UnixMilli(), suffix)
}
