/*
Package fibergraphql mounts a GraphQL-over-HTTP endpoint, optional
in-browser developer tools (GraphiQL, Playground, Voyager) and an
optional WebSocket subscription transport onto a Fiber application.

The package is glue, not an engine: query execution belongs to the
schema the caller supplies (typically *graphql.Schema from
graph-gophers/graphql-go), and routing belongs to the host fiber app.

	schema := graphql.MustParseSchema(schemaText, &resolver{})
	app := fiber.New()

	if err := fibergraphql.Attach(app, "/graphql", schema,
		fibergraphql.WithTools(
			fibergraphql.GraphiQL{},
			fibergraphql.Voyager{},
		),
	); err != nil {
		log.Fatal("registration failed", "error", err)
	}
*/
package fibergraphql

import (
	"github.com/gofiber/fiber/v3"

	"github.com/theapemachine/fibergraphql/pkg/handler"
	"github.com/theapemachine/fibergraphql/pkg/tools"
)

// ===========================
// Re-exported Types
// ===========================

type (
	Executor = handler.Executor
	Option   = handler.Option

	Tool       = tools.Tool
	GraphiQL   = tools.GraphiQL
	Playground = tools.Playground
	Voyager    = tools.Voyager
)

// ===========================
// Registration
// ===========================

// Attach binds the endpoint, and one route per configured tool, onto
// the application's router. See handler.Attach.
func Attach(app fiber.Router, routePath string, schema Executor, opts ...Option) error {
	return handler.Attach(app, routePath, schema, opts...)
}

// Registration options, re-exported for one-import callers.
var (
	WithTool          = handler.WithTool
	WithTools         = handler.WithTools
	WithPretty        = handler.WithPretty
	WithMaxAge        = handler.WithMaxAge
	WithSubscriptions = handler.WithSubscriptions
)
