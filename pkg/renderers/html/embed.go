package html

import (
	"embed"
	"io/fs"
)

//go:embed templates
var embeddedTemplates embed.FS

// TemplatesFS exposes the default template bundle rooted at its templates
// directory, for callers that want to copy or extend it.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
