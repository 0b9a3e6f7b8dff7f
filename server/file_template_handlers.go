package server

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

const layoutTemplate = "layout.html"

// pageTemplates are rendered inside layout.html.
var pageTemplates = []string{
	"login.html",
	"dashboard.html",
	"sales.html",
	"void.html",
	"inventory.html",
	"users.html",
	"unauthorized.html",
	"error.html",
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a standalone template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Parse(string(content))
}

// parsePages parses every page together with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return pages, nil
}
