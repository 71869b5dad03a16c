package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template names understood by Render.
const (
	TemplateWelcome       = "welcome"
	TemplateResetPassword = "reset-password"
	TemplateVerifyEmail   = "verify-email"
)

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]messageTemplate{
	TemplateWelcome: {
		subject: "Welcome to {{.AppName}}",
		body: template.Must(template.New(TemplateWelcome).Parse(`Hi {{.Name}},

Your account has been created. Confirm your email address with the token below:

{{.Token}}
{{if .Link}}
Or open {{.Link}}
{{end}}`)),
	},
	TemplateResetPassword: {
		subject: "Reset your {{.AppName}} password",
		body: template.Must(template.New(TemplateResetPassword).Parse(`Hi {{.Name}},

Use the token below to choose a new password. It expires in {{.ExpiresIn}}.

{{.Token}}
{{if .Link}}
Or open {{.Link}}
{{end}}
If you did not ask for a reset you can ignore this message.`)),
	},
	TemplateVerifyEmail: {
		subject: "Verify your {{.AppName}} email address",
		body: template.Must(template.New(TemplateVerifyEmail).Parse(`Hi {{.Name}},

Confirm your email address with the token below. It expires in {{.ExpiresIn}}.

{{.Token}}
{{if .Link}}
Or open {{.Link}}
{{end}}`)),
	},
}

// TemplateData feeds the account email templates.
type TemplateData struct {
	AppName   string
	Name      string
	Token     string
	Link      string
	ExpiresIn string
}

// Render builds a message addressed to recipient from the named template.
func Render(name, recipient string, data TemplateData) (Message, error) {
	tpl, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("mail: unknown template %q", name)
	}

	subject, err := template.New("subject").Parse(tpl.subject)
	if err != nil {
		return Message{}, fmt.Errorf("mail: parse subject: %w", err)
	}
	var subjectBuf, bodyBuf bytes.Buffer
	if err := subject.Execute(&subjectBuf, data); err != nil {
		return Message{}, fmt.Errorf("mail: render subject: %w", err)
	}
	if err := tpl.body.Execute(&bodyBuf, data); err != nil {
		return Message{}, fmt.Errorf("mail: render %s: %w", name, err)
	}

	return Message{
		To:      []string{recipient},
		Subject: subjectBuf.String(),
		Body:    bodyBuf.String(),
	}, nil
}
