package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

const liveScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws");
  ws.onmessage = function () { location.reload(); };
})();
</script>`

const stylesheet = `<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { padding: .25rem .75rem; text-align: left; border-bottom: 1px solid #ddd; }
pre { background: #f6f6f6; padding: .5rem; }
</style>`

// page wraps body in the document shell shared by every inspector page.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>%s</title>%s</head><body>",
			templ.EscapeString(title), stylesheet); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, liveScript+"</body></html>")
		return err
	})
}

func templateLink(id string) string {
	return fmt.Sprintf(`<a href="/templates/%s">%s</a>`,
		templ.EscapeString(url.PathEscape(id)), templ.EscapeString(id))
}

func indexPage(rows []TemplateSummary) templ.Component {
	return page("protoplast", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>Templates</h1><p id=\"count\">%d registered</p>", len(rows))
		io.WriteString(w, "<table><thead><tr><th>ID</th><th>Handle</th><th>Version</th><th>Revision</th><th>Schematics</th><th>Bound</th><th>Source</th></tr></thead><tbody>")
		for _, row := range rows {
			fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td></tr>",
				templateLink(row.ID),
				templ.EscapeString(row.Handle),
				templ.EscapeString(row.Version),
				row.Revision,
				row.Schematics,
				row.Bound,
				templ.EscapeString(row.Source))
		}
		_, err := io.WriteString(w, "</tbody></table>")
		return err
	}))
}

func detailPage(detail *TemplateDetail) templ.Component {
	return page(detail.ID, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<p><a href=\"/\">all templates</a></p><h1>%s</h1>", templ.EscapeString(detail.ID))
		fmt.Fprintf(w, "<p>handle %s, revision %d", templ.EscapeString(detail.Handle), detail.Revision)
		if detail.Version != "" {
			fmt.Fprintf(w, ", version %s", templ.EscapeString(detail.Version))
		}
		io.WriteString(w, "</p>")

		io.WriteString(w, "<h2>Schematics</h2><ol start=\"0\" id=\"schematics\">")
		for _, s := range detail.Schematics {
			input, err := json.MarshalIndent(s.Input, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "<li><strong>%s</strong><pre>%s</pre></li>",
				templ.EscapeString(s.Type), templ.EscapeString(string(input)))
		}
		io.WriteString(w, "</ol>")

		io.WriteString(w, "<h2>Depends on</h2><ul id=\"edges\">")
		for _, edge := range detail.Edges {
			fmt.Fprintf(w, "<li>%s (%s, schematic %d)</li>",
				templateLink(edge.Template), templ.EscapeString(string(edge.Target)), edge.Index)
		}
		io.WriteString(w, "</ul><h2>Used by</h2><ul id=\"dependents\">")
		for _, id := range detail.Dependents {
			fmt.Fprintf(w, "<li>%s</li>", templateLink(id))
		}
		io.WriteString(w, "</ul><h2>Objects</h2><ul id=\"objects\">")
		for _, obj := range detail.Objects {
			fmt.Fprintf(w, "<li>object %d: %d capabilities, %d children</li>",
				obj.ID, len(obj.Capabilities), obj.Children)
		}
		_, err := io.WriteString(w, "</ul>")
		return err
	}))
}
