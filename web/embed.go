package web

import (
	"embed"
	"html/template"
)

// Templates embeds the dashboard pages so the binary needs no separate
// asset deployment.
//
//go:embed templates/*.tmpl
var Templates embed.FS

// Dashboard parses the embedded dashboard templates with the given funcs.
func Dashboard(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(Templates, "templates/*.tmpl")
}
