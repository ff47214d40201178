// internal/workers/application/send-registration-confirmation/templates.go
package sendregistrationconfirmation

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"msad-registration/internal/registration/submission"
)

type message struct {
	Subject string
	Text    string
	HTML    string
	SMS     string
}

type templateData struct {
	FirstName         string
	ApplicationNumber string
	NextSteps         []string
}

var (
	subjectTmpl = template.Must(template.New("subject").Parse(
		`Your Miss Disability application {{.ApplicationNumber}} has been received`))

	textTmpl = template.Must(template.New("text").Parse(`Dear {{.FirstName}},

Thank you for applying. Your reference code is {{.ApplicationNumber}}.
Please keep it for any correspondence with us.

What happens next:
{{range .NextSteps}}- {{.}}
{{end}}
Miss Disability South Africa`))

	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<p>Dear {{.FirstName}},</p>
<p>Thank you for applying. Your reference code is <strong>{{.ApplicationNumber}}</strong>.
Please keep it for any correspondence with us.</p>
<p>What happens next:</p>
<ul>{{range .NextSteps}}<li>{{.}}</li>{{end}}</ul>
<p>Miss Disability South Africa</p>`))

	smsTmpl = template.Must(template.New("sms").Parse(
		`Miss Disability SA: application received. Reference {{.ApplicationNumber}}. We will review it within 5-7 business days.`))
)

func renderMessage(input *Input) (*message, error) {
	data := templateData{
		FirstName:         input.FirstName,
		ApplicationNumber: input.ApplicationNumber,
		NextSteps:         submission.NextSteps,
	}
	if data.FirstName == "" {
		data.FirstName = "applicant"
	}

	var m message
	for _, r := range []struct {
		exec func(*bytes.Buffer) error
		dst  *string
	}{
		{func(b *bytes.Buffer) error { return subjectTmpl.Execute(b, data) }, &m.Subject},
		{func(b *bytes.Buffer) error { return textTmpl.Execute(b, data) }, &m.Text},
		{func(b *bytes.Buffer) error { return htmlTmpl.Execute(b, data) }, &m.HTML},
		{func(b *bytes.Buffer) error { return smsTmpl.Execute(b, data) }, &m.SMS},
	} {
		var buf bytes.Buffer
		if err := r.exec(&buf); err != nil {
			return nil, err
		}
		*r.dst = buf.String()
	}
	return &m, nil
}
