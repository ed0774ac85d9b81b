package interfaces

import (
	"io"
)

// TemplateRenderer executes theme templates for exported pages. When no
// writer is supplied the rendered output is returned as a string; with a
// writer the output streams there and the returned string is empty.
type TemplateRenderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
}
