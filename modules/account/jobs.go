package account

import (
	"context"
	"fmt"
	"net/url"

	"accountd/pkg/email"
	"accountd/pkg/queue"
)

// Job payloads. The closed set of kinds the account worker dispatches; the
// struct type doubles as the task name on the wire.

// SendVerifyAccountEmail asks the worker to deliver the email-verification
// link for a freshly registered account.
type SendVerifyAccountEmail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// SendWelcomeAccountEmail is enqueued once verification succeeds.
type SendWelcomeAccountEmail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SendResetPasswordEmail carries the reset link for a password reset
// request.
type SendResetPasswordEmail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// SendPasswordWasResetEmail notifies the account owner after a successful
// password change.
type SendPasswordWasResetEmail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SendAccountOddRegisterAttemptEmail is enqueued when registration hits an
// existing email. The registrant sees the normal success page; the owner
// gets this heads-up instead of a new account.
type SendAccountOddRegisterAttemptEmail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// EmailJobs renders and sends the account module's transactional emails.
// Each method is registered as a queue handler; failures propagate to the
// worker and drive the retry backoff.
type EmailJobs struct {
	sender       email.Sender
	publicURL    string
	supportEmail string
}

// NewEmailJobs creates the email job handlers.
func NewEmailJobs(sender email.Sender, publicURL, supportEmail string) *EmailJobs {
	return &EmailJobs{
		sender:       sender,
		publicURL:    publicURL,
		supportEmail: supportEmail,
	}
}

// Handlers returns the full handler set for worker registration.
func (j *EmailJobs) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewJobHandler(j.sendVerify),
		queue.NewJobHandler(j.sendWelcome),
		queue.NewJobHandler(j.sendResetPassword),
		queue.NewJobHandler(j.sendPasswordWasReset),
		queue.NewJobHandler(j.sendOddRegisterAttempt),
	}
}

func (j *EmailJobs) sendVerify(ctx context.Context, p SendVerifyAccountEmail) error {
	return j.send(ctx, p.Email, "Verify your email", email.TemplateVerify, email.TemplateData{
		Name:         p.Name,
		ActionURL:    j.link("/verify/" + url.PathEscape(p.Token)),
		SupportEmail: j.supportEmail,
	})
}

func (j *EmailJobs) sendWelcome(ctx context.Context, p SendWelcomeAccountEmail) error {
	return j.send(ctx, p.Email, "Welcome!", email.TemplateWelcome, email.TemplateData{
		Name:         p.Name,
		SupportEmail: j.supportEmail,
	})
}

func (j *EmailJobs) sendResetPassword(ctx context.Context, p SendResetPasswordEmail) error {
	return j.send(ctx, p.Email, "Reset your password", email.TemplateResetPassword, email.TemplateData{
		Name:         p.Name,
		ActionURL:    j.link("/reset/" + url.PathEscape(p.Token)),
		SupportEmail: j.supportEmail,
	})
}

func (j *EmailJobs) sendPasswordWasReset(ctx context.Context, p SendPasswordWasResetEmail) error {
	return j.send(ctx, p.Email, "Your password was changed", email.TemplatePasswordWasReset, email.TemplateData{
		Name:         p.Name,
		SupportEmail: j.supportEmail,
	})
}

func (j *EmailJobs) sendOddRegisterAttempt(ctx context.Context, p SendAccountOddRegisterAttemptEmail) error {
	return j.send(ctx, p.Email, "Did you try to sign up again?", email.TemplateOddRegisterAttempt, email.TemplateData{
		Name:         p.Name,
		ActionURL:    j.link("/login"),
		SupportEmail: j.supportEmail,
	})
}

func (j *EmailJobs) send(ctx context.Context, to, subject, tpl string, data email.TemplateData) error {
	body, err := email.RenderTemplate(tpl, data)
	if err != nil {
		return err
	}
	return j.sender.Send(ctx, email.SendParams{
		To:       to,
		Subject:  subject,
		BodyHTML: body,
		Tag:      tpl,
	})
}

func (j *EmailJobs) link(path string) string {
	return fmt.Sprintf("%s%s", j.publicURL, path)
}
