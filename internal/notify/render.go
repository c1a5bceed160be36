package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"lambda-janitor/internal/janitor"
)

const (
	defaultSubject = "Lambda Cleanup Notification"
	dateLayout     = "2006-01-02"
)

var htmlTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"lastUsed": lastUsed,
	"deletion": deletionDate,
}).Parse(`<html><body><h2>{{.Title}}</h2>
{{- if .Deleted}}
<h3>{{.DeletedHeading}}</h3><table border="1" cellpadding="5" cellspacing="0">
<tr><th>Function Name</th><th>Version</th><th>Last Used</th><th>Age (days)</th></tr>
{{- range .Deleted}}
<tr><td>{{.Record.FunctionName}}</td><td>{{.Record.Version}}</td><td>{{lastUsed .}}</td><td>{{if .NeverUsed}}-{{else}}{{.AgeDays}}{{end}}</td></tr>
{{- end}}
</table><br>
{{- end}}
<h3>Lambda Versions Scheduled for Deletion Soon</h3><table border="1" cellpadding="5" cellspacing="0">
<tr><th>Function Name</th><th>Version</th><th>Last Used</th><th>Age (days)</th><th>Scheduled Deletion</th></tr>
{{- range .Warned}}
<tr><td>{{.Record.FunctionName}}</td><td>{{.Record.Version}}</td><td>{{lastUsed .}}</td><td>{{.AgeDays}}</td><td>{{deletion .}}</td></tr>
{{- end}}
</table><br>
<p>Generated {{.Generated}}</p>
</body></html>
`))

type htmlView struct {
	Title          string
	DeletedHeading string
	Generated      string
	Warned         []janitor.Classification
	Deleted        []janitor.Classification
}

// Render builds the HTML and plain-text bodies for a batch.
func Render(batch janitor.NotificationBatch) (Email, error) {
	subject := strings.TrimSpace(batch.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	if batch.DryRun {
		subject = "[dry run] " + subject
	}

	view := htmlView{
		Title:          defaultSubject,
		DeletedHeading: deletedHeading(batch.DryRun),
		Generated:      batch.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"),
		Warned:         batch.Warned,
		Deleted:        batch.Deleted,
	}
	var html bytes.Buffer
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return Email{}, fmt.Errorf("render email html: %w", err)
	}

	return Email{
		From:     batch.Sender,
		To:       append([]string(nil), batch.Recipients...),
		Subject:  subject,
		HTMLBody: html.String(),
		TextBody: renderText(batch),
	}, nil
}

func renderText(batch janitor.NotificationBatch) string {
	var b strings.Builder
	b.WriteString(defaultSubject + "\n")
	b.WriteString("Generated: " + batch.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC") + "\n")

	fmt.Fprintf(&b, "\nLambda versions scheduled for deletion soon (%d):\n", len(batch.Warned))
	for _, c := range batch.Warned {
		fmt.Fprintf(&b, "- %s:%s last used %s, deletion on %s (%d days old)\n",
			c.Record.FunctionName, c.Record.Version, lastUsed(c), deletionDate(c), c.AgeDays)
	}

	if len(batch.Deleted) > 0 {
		fmt.Fprintf(&b, "\n%s (%d):\n", deletedHeading(batch.DryRun), len(batch.Deleted))
		for _, c := range batch.Deleted {
			if c.NeverUsed {
				fmt.Fprintf(&b, "- %s:%s never used\n", c.Record.FunctionName, c.Record.Version)
				continue
			}
			fmt.Fprintf(&b, "- %s:%s last used %s (%d days old)\n",
				c.Record.FunctionName, c.Record.Version, lastUsed(c), c.AgeDays)
		}
	}
	return b.String()
}

func deletedHeading(dryRun bool) string {
	if dryRun {
		return "Lambda Versions That Would Be Deleted (dry run)"
	}
	return "Deleted Lambda Versions"
}

func lastUsed(c janitor.Classification) string {
	if c.NeverUsed || c.Record.LastUsedAt == nil {
		return "never"
	}
	return c.Record.LastUsedAt.UTC().Format(dateLayout)
}

func deletionDate(c janitor.Classification) string {
	if c.ScheduledDeletion.IsZero() {
		return "-"
	}
	return c.ScheduledDeletion.UTC().Format(dateLayout)
}
