package handlers

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/"+name)
}
