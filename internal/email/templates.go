package email

import (
	"bytes"
	"html/template"
)

var (
	resetTmpl = template.Must(template.New("reset").Parse(`<p>Hi {{.Name}},</p>
<p>We received a request to reset your Venuly password. The link below is valid for one hour.</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`))

	notificationTmpl = template.Must(template.New("notification").Parse(`<p>Hi {{.Name}},</p>
<p><strong>{{.Title}}</strong></p>
<p>{{.Message}}</p>
{{if .Link}}<p><a href="{{.Link}}">Open in Venuly</a></p>{{end}}`))
)

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

func PasswordReset(to, name, link string) Message {
	return Message{
		To:       to,
		ToName:   name,
		Subject:  "Reset your Venuly password",
		HTML:     render(resetTmpl, map[string]string{"Name": name, "Link": link}),
		Template: "password_reset",
	}
}

func Notification(to, name, title, message, link string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: title,
		HTML: render(notificationTmpl, map[string]string{
			"Name": name, "Title": title, "Message": message, "Link": link,
		}),
		Template: "notification",
	}
}
