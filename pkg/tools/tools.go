package tools

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/theapemachine/fibergraphql/pkg/errors"
)

/*
Tool is a browser-rendered developer aid served as a static page next
to the GraphQL endpoint. Every variant implements the single Render
capability; there is no shared base type.
*/
type Tool interface {
	// Name is the stable identifier used to derive the default
	// mount point, <endpoint>/<name>.
	Name() string

	// Path is the explicit mount point override, or "" to derive
	// one from the endpoint path.
	Path() string

	// Render produces the tool's HTML page with the GraphQL
	// endpoint path injected, so the page knows where to send
	// queries.
	Render(endpoint string) ([]byte, error)
}

/*
Route binds one resolved sub-path to the tool served there.
*/
type Route struct {
	Path string
	Tool Tool
}

/*
Routes resolves the mount point for every tool in order: the explicit
override wins, otherwise <endpoint>/<name>. The endpoint itself is
reserved for the API handler, and no two tools may share a sub-path;
either collision fails registration.
*/
func Routes(endpoint string, list []Tool) ([]Route, error) {
	seen := map[string]struct{}{endpoint: {}}
	routes := make([]Route, 0, len(list))

	for _, tool := range list {
		if tool == nil {
			return nil, errors.ErrNilTool
		}

		path := tool.Path()
		if path == "" {
			path = strings.TrimRight(endpoint, "/") + "/" + tool.Name()
		}

		if _, dup := seen[path]; dup {
			return nil, errors.ErrToolConflict.WithMessagef(
				"tool %q resolves to %q, which is already taken", tool.Name(), path)
		}

		seen[path] = struct{}{}
		routes = append(routes, Route{Path: path, Tool: tool})
	}

	return routes, nil
}

//go:embed templates/*.html
var templates embed.FS

type pageData struct {
	Endpoint string
}

// render executes a page template with the endpoint injected. When
// custom is empty the embedded default for the tool is used.
func render(name, custom, endpoint string) ([]byte, error) {
	text := custom

	if text == "" {
		raw, err := templates.ReadFile("templates/" + name + ".html")
		if err != nil {
			return nil, err
		}
		text = string(raw)
	}

	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pageData{Endpoint: endpoint}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
