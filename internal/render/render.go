// Package render turns notification events into SMS bodies.
package render

import (
	"fmt"
	"strings"
	"text/template"

	"roadAccident/internal/domain"
)

const (
	MaxSMSLen    = 160
	maxReasonLen = 50
	shortIDLen   = 6
)

const tmpl = `
{{define "approved"}}Report #{{.ShortID}} APPROVED. Ambulance {{.Ambulance}} dispatched, ETA {{.ETA}}. Hospital: {{.Hospital}}.{{end}}
{{define "rejected"}}Report #{{.ShortID}} was reviewed and not approved.{{if .Reason}} Reason: {{.Reason}}{{end}}{{end}}
{{define "test"}}Test SMS from the road accident service. Delivery works.{{end}}
`

type Renderer struct {
	t *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.New("sms").Parse(tmpl)
	if err != nil {
		return nil, err
	}
	return &Renderer{t: t}, nil
}

type approvedView struct {
	ShortID   string
	Ambulance string
	ETA       string
	Hospital  string
}

type rejectedView struct {
	ShortID string
	Reason  string
}

// Render returns the message for ev, never longer than MaxSMSLen runes.
func (r *Renderer) Render(ev domain.NotificationEvent) (string, error) {
	var (
		name string
		data any
	)
	switch ev := ev.(type) {
	case domain.ApprovedEvent:
		name = "approved"
		data = approvedView{
			ShortID:   shortID(ev.ReportID),
			Ambulance: ev.Ambulance,
			ETA:       ev.ETA,
			Hospital:  ev.Hospital,
		}
	case domain.RejectedEvent:
		name = "rejected"
		data = rejectedView{
			ShortID: shortID(ev.ReportID),
			Reason:  Truncate(strings.TrimSpace(ev.Reason), maxReasonLen),
		}
	default:
		return "", fmt.Errorf("render: unsupported event %T", ev)
	}
	return r.execute(name, data)
}

func (r *Renderer) RenderTest() (string, error) {
	return r.execute("test", nil)
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var b strings.Builder
	if err := r.t.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return Truncate(b.String(), MaxSMSLen), nil
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

// Truncate cuts s to at most n runes, ending with "..." when something was cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
