package email

import (
	"context"
	"sync"
)

const (
	TemplateOTPCode      = "otp_code"
	TemplateInviteMember = "invite_member"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// NoOpProvider is used when outbound email is disabled.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	return nil
}

type SentMessage struct {
	To       []string
	Template string
	Subject  string
	Data     map[string]any
}

// Recorder keeps messages in memory. Tests use it to assert deliveries.
type Recorder struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

func (r *Recorder) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, SentMessage{To: to, Subject: subject})
	return nil
}

func (r *Recorder) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, SentMessage{To: to, Template: templateName, Subject: subjectFor(templateName, data), Data: data})
	return nil
}

func (r *Recorder) Sent() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}
