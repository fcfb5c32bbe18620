package email

import (
	"embed"
	"errors"
	"html/template"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var notificationTmpl = template.Must(
	template.ParseFS(templateFS, "templates/notification.html.tmpl"),
)

// accent colors keyed by notification severity; unknown severities fall back
// to the info color.
var accentColors = map[string]string{
	"INFO":    "#0052cc",
	"SUCCESS": "#36b37e",
	"WARNING": "#ffab00",
	"ERROR":   "#de350b",
}

// RenderNotification renders the notification email body. Severity selects
// the accent color and matches the notification type names.
func RenderNotification(severity, subject, message string) (string, error) {
	if subject == "" || message == "" {
		return "", errors.New("email: subject and message are required")
	}

	accent, ok := accentColors[severity]
	if !ok {
		accent = accentColors["INFO"]
	}

	var sb strings.Builder
	err := notificationTmpl.Execute(&sb, struct {
		Subject     string
		Message     string
		AccentColor template.CSS
	}{
		Subject:     subject,
		Message:     message,
		AccentColor: template.CSS(accent),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
