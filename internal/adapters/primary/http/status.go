package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// statusPageTemplate wraps the rendered status markdown
var statusPageTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>reloadrelay status</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 48rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
th, td { border: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f5f5f5; }
code { background: #f0f0f0; padding: 0 0.2rem; }
</style>
</head>
<body>
{{.}}
</body>
</html>
`))

// statusMarkdown converts markdown status documents to HTML
var statusMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Table,
	),
)

// createHTMLSanitizer creates a restrictive HTML sanitizer for the status page
func createHTMLSanitizer() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements("h1", "h2", "h3", "p", "br", "hr")
	p.AllowElements("strong", "em", "code", "pre")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	return p
}

var htmlSanitizer = createHTMLSanitizer()

// stateLabel turns an identifier such as awaiting_config into "Awaiting Config"
func stateLabel(state string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(state, "_", " "))
}

// mdCodeReplacer keeps a value inside a single code span and table cell
var mdCodeReplacer = strings.NewReplacer(
	"`", "'",
	"|", `\|`,
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
)

// mdCode renders s as an inline code span, or a dash when empty
func mdCode(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + mdCodeReplacer.Replace(s) + "`"
}

// renderStatusMarkdown builds the markdown document for the status page
func renderStatusMarkdown(resp StatusResponse) string {
	var b strings.Builder

	b.WriteString("# reloadrelay\n\n")
	b.WriteString("## Relay\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| State | **%s** |\n", stateLabel(resp.Relay.StateName))
	fmt.Fprintf(&b, "| Upstream | %s |\n", stateLabel(resp.Relay.StreamName))
	fmt.Fprintf(&b, "| Events URL | %s |\n", mdCode(resp.Relay.EventsURL))
	fmt.Fprintf(&b, "| Server version | %s |\n", mdCode(resp.Relay.LastVersionID))
	fmt.Fprintf(&b, "| Attached tabs | %d |\n\n", resp.Tabs)

	if m := resp.Metrics; m != nil {
		b.WriteString("## Activity\n\n")
		b.WriteString("| Counter | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Ping events | %d |\n", m.PingEvents)
		fmt.Fprintf(&b, "| Reload events | %d |\n", m.ReloadEvents)
		fmt.Fprintf(&b, "| Reload broadcasts | %d |\n", m.ReloadBroadcasts)
		fmt.Fprintf(&b, "| Restart broadcasts | %d |\n", m.RestartBroadcasts)
		fmt.Fprintf(&b, "| Dropped records | %d |\n", m.DecodeFailures)
		fmt.Fprintf(&b, "| Reconnects | %d |\n", m.Reconnects)
		fmt.Fprintf(&b, "| Tabs attached / detached | %d / %d |\n\n", m.TabsAttached, m.TabsDetached)

		b.WriteString("## Process\n\n")
		b.WriteString("| | |\n|---|---|\n")
		fmt.Fprintf(&b, "| Uptime | %s |\n", m.Uptime.Truncate(time.Second))
		fmt.Fprintf(&b, "| Goroutines | %d |\n", m.Goroutines)
		fmt.Fprintf(&b, "| Heap | %.1f MiB |\n", float64(m.HeapBytes)/(1<<20))
		fmt.Fprintf(&b, "| RSS | %.1f MiB |\n", float64(m.RSSBytes)/(1<<20))
		fmt.Fprintf(&b, "| CPU | %.1f%% |\n", m.CPUPercent)
		fmt.Fprintf(&b, "| GC cycles | %d |\n", m.GCCycles)
	}

	return b.String()
}

// renderStatusPage renders a status response as a sanitized HTML document
func renderStatusPage(resp StatusResponse) ([]byte, error) {
	var body bytes.Buffer
	if err := statusMarkdown.Convert([]byte(renderStatusMarkdown(resp)), &body); err != nil {
		return nil, fmt.Errorf("rendering status markdown: %w", err)
	}

	safe := htmlSanitizer.SanitizeBytes(body.Bytes())

	var page bytes.Buffer
	// #nosec G203 - content has been sanitized by bluemonday
	if err := statusPageTemplate.Execute(&page, template.HTML(safe)); err != nil {
		return nil, fmt.Errorf("executing status template: %w", err)
	}
	return page.Bytes(), nil
}

// handleStatusPage serves the human readable status page
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	page, err := renderStatusPage(s.statusResponse())
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(page)
}
