package render

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tpl
var embeddedTemplates embed.FS

// TemplatesFS exposes the embedded template bundle so callers can layer their
// own overrides on top of it.
func TemplatesFS() fs.FS {
	return embeddedTemplates
}
