package web

import (
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/docker/go-units"
	"github.com/tauraamui/xerror"
)

//go:embed templates/*.html
var templatesFS embed.FS

type page struct {
	template *template.Template
	data     pageData
}

type pageData struct {
	Title      string
	Accept     string
	Extensions string
	MaxUpload  string
}

func newPage(opts Options) (*page, error) {
	t, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, xerror.Errorf("unable to parse page template: %w", err)
	}

	accept := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		accept = append(accept, "."+strings.TrimPrefix(strings.ToLower(ext), "."))
	}

	data := pageData{
		Title:      "Tennis Game Tracking",
		Accept:     strings.Join(accept, ","),
		Extensions: strings.ToUpper(strings.Join(opts.Extensions, ", ")),
	}
	if opts.MaxUploadSize > 0 {
		data.MaxUpload = units.BytesSize(float64(opts.MaxUploadSize))
	}

	return &page{template: t, data: data}, nil
}

func (p *page) render(w io.Writer) error {
	return p.template.Execute(w, p.data)
}
