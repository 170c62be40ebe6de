package email

import (
	"bytes"
	"fmt"
	htemplate "html/template"
	"strings"
	ttemplate "text/template"
	"time"
)

// Vars son las variables disponibles en los templates.
type Vars struct {
	Email string
	Link  string
	Code  string
	TTL   string
}

const verifyHTML = `<html><body>
<p>Hola {{.Email}},</p>
<p>Confirmá tu dirección de email.</p>
{{if .Link}}<p><a href="{{.Link}}">Verificar email</a></p>{{end}}
{{if .Code}}<p>{{if .Link}}O ingresá{{else}}Ingresá{{end}} este código: <strong>{{.Code}}</strong></p>{{end}}
<p>{{if .Link}}El enlace vence{{else}}El código vence{{end}} en {{.TTL}}.</p>
</body></html>`

const verifyText = `Hola {{.Email}},

Confirmá tu dirección de email.
{{if .Link}}
Visitá:
{{.Link}}
{{end}}{{if .Code}}
{{if .Link}}O ingresá{{else}}Ingresá{{end}} este código: {{.Code}}
{{end}}
{{if .Link}}El enlace vence{{else}}El código vence{{end}} en {{.TTL}}.`

const resetHTML = `<html><body>
<p>Hola {{.Email}},</p>
<p>Recibimos un pedido para restablecer tu password.</p>
{{if .Link}}<p><a href="{{.Link}}">Restablecer password</a></p>{{end}}
{{if .Code}}<p>{{if .Link}}O ingresá{{else}}Ingresá{{end}} este código: <strong>{{.Code}}</strong></p>{{end}}
<p>{{if .Link}}El enlace vence{{else}}El código vence{{end}} en {{.TTL}}. Si no fuiste vos, ignorá este correo.</p>
</body></html>`

const resetText = `Hola {{.Email}},

Recibimos un pedido para restablecer tu password.
{{if .Link}}
Visitá:
{{.Link}}
{{end}}{{if .Code}}
{{if .Link}}O ingresá{{else}}Ingresá{{end}} este código: {{.Code}}
{{end}}
{{if .Link}}El enlace vence{{else}}El código vence{{end}} en {{.TTL}}. Si no fuiste vos, ignorá este correo.`

var (
	verifyHTMLTmpl = htemplate.Must(htemplate.New("verify_html").Parse(verifyHTML))
	verifyTextTmpl = ttemplate.Must(ttemplate.New("verify_text").Parse(verifyText))
	resetHTMLTmpl  = htemplate.Must(htemplate.New("reset_html").Parse(resetHTML))
	resetTextTmpl  = ttemplate.Must(ttemplate.New("reset_text").Parse(resetText))
)

// RenderVerification renderiza ambos cuerpos del email de verificación.
func RenderVerification(v Vars) (html, text string, err error) {
	return render(verifyHTMLTmpl, verifyTextTmpl, v)
}

// RenderReset renderiza ambos cuerpos del email de reset.
func RenderReset(v Vars) (html, text string, err error) {
	return render(resetHTMLTmpl, resetTextTmpl, v)
}

func render(h *htemplate.Template, t *ttemplate.Template, v Vars) (string, string, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, v); err != nil {
		return "", "", fmt.Errorf("email: render html: %w", err)
	}
	if err := t.Execute(&tb, v); err != nil {
		return "", "", fmt.Errorf("email: render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

// HumanTTL formatea una duración para mostrar en el correo.
func HumanTTL(d time.Duration) string {
	if d >= time.Hour {
		h := int(d.Hours())
		if h == 1 {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", h)
	}
	m := int(d.Minutes())
	if m <= 1 {
		return "1 minuto"
	}
	return fmt.Sprintf("%d minutos", m)
}

// BuildLink arma el link de verificación/reset sobre la base configurada.
func BuildLink(baseURL, path, token string) string {
	base := strings.TrimRight(baseURL, "/")
	return base + path + "?token=" + token
}
