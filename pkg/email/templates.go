package email

import (
	"fmt"
	"html/template"
	"strings"
)

// TemplateData carries the values the transactional templates interpolate.
// ActionURL is the absolute link embedded in the email (verification link,
// reset link); not every template uses it.
type TemplateData struct {
	Name         string
	ActionURL    string
	SupportEmail string
}

const (
	TemplateVerify             = "verify"
	TemplateWelcome            = "welcome"
	TemplateResetPassword      = "reset_password"
	TemplatePasswordWasReset   = "password_was_reset"
	TemplateOddRegisterAttempt = "odd_register_attempt"
)

var templates = template.Must(template.New("emails").Parse(`
{{define "layout_top"}}<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 560px; margin: 0 auto; padding: 24px;">
{{end}}
{{define "layout_bottom"}}
<p style="color: #888; font-size: 13px;">Questions? Write to <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>.</p>
</body>
</html>{{end}}

{{define "verify"}}{{template "layout_top" .}}
<h2>Verify your email</h2>
<p>Hi {{.Name}},</p>
<p>Thanks for signing up. Confirm your email address to activate your account:</p>
<p><a href="{{.ActionURL}}">Verify my email</a></p>
<p>If you did not create this account, you can ignore this message.</p>
{{template "layout_bottom" .}}{{end}}

{{define "welcome"}}{{template "layout_top" .}}
<h2>Welcome aboard</h2>
<p>Hi {{.Name}},</p>
<p>Your email is verified and your account is ready to use.</p>
{{template "layout_bottom" .}}{{end}}

{{define "reset_password"}}{{template "layout_top" .}}
<h2>Reset your password</h2>
<p>Hi {{.Name}},</p>
<p>Someone requested a password reset for your account. If that was you, follow this link:</p>
<p><a href="{{.ActionURL}}">Choose a new password</a></p>
<p>The link expires shortly. If you did not request a reset, ignore this message.</p>
{{template "layout_bottom" .}}{{end}}

{{define "password_was_reset"}}{{template "layout_top" .}}
<h2>Your password was changed</h2>
<p>Hi {{.Name}},</p>
<p>The password on your account was just changed. If this was not you, contact support immediately.</p>
{{template "layout_bottom" .}}{{end}}

{{define "odd_register_attempt"}}{{template "layout_top" .}}
<h2>Did you try to sign up again?</h2>
<p>Hi {{.Name}},</p>
<p>Someone just tried to register a new account with this email address, but you already have one. If that was you, sign in instead:</p>
<p><a href="{{.ActionURL}}">Sign in</a></p>
<p>If it was not you, no action is needed. Your account is safe.</p>
{{template "layout_bottom" .}}{{end}}
`))

// RenderTemplate renders one of the named transactional templates to HTML.
func RenderTemplate(name string, data TemplateData) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to render email template %q: %w", name, err)
	}
	return sb.String(), nil
}
