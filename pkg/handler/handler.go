package handler

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/theapemachine/fibergraphql/pkg/errors"
	"github.com/theapemachine/fibergraphql/pkg/tools"
	"github.com/theapemachine/fibergraphql/pkg/ws"
)

/*
Executor is the capability the adapter needs from a GraphQL engine:
execute one operation and report data and/or errors. It is satisfied
by *graphql.Schema from graph-gophers/graphql-go, and by anything else
exposing the same contract.
*/
type Executor interface {
	Exec(ctx context.Context, queryString string, operationName string, variables map[string]any) *graphql.Response
}

// DefaultMaxAge is the preflight cache lifetime advertised to
// apollo-style clients, in seconds.
const DefaultMaxAge = 86400

// allowedMethods is what the preflight response advertises.
const allowedMethods = "GET, POST, PUT, DELETE"

/*
Handler serves one GraphQL endpoint: it classifies each request as an
API call, a tool page or a preflight, and forwards API calls to the
engine. It holds no mutable state, so one Handler is safe for any
number of concurrent requests.
*/
type Handler struct {
	schema    Executor
	routePath string

	singleTool tools.Tool
	toolList   []tools.Tool
	primary    tools.Tool

	pretty        bool
	maxAge        int
	subscriptions bool
	transport     *ws.Transport
}

// Option configures a registration.
type Option func(*Handler)

// WithTool serves the given tool at the endpoint itself for browser
// requests, and at its own sub-path. Mutually exclusive with
// WithTools.
func WithTool(tool tools.Tool) Option {
	return func(h *Handler) { h.singleTool = tool }
}

// WithTools installs a route per tool. The first tool also answers
// browser requests at the endpoint itself. Mutually exclusive with
// WithTool.
func WithTools(list ...tools.Tool) Option {
	return func(h *Handler) { h.toolList = list }
}

// WithPretty indents every JSON response. Individual requests can also
// opt in with ?pretty=1.
func WithPretty() Option {
	return func(h *Handler) { h.pretty = true }
}

// WithMaxAge overrides the preflight cache lifetime, in seconds.
func WithMaxAge(seconds int) Option {
	return func(h *Handler) { h.maxAge = seconds }
}

// WithSubscriptions upgrades websocket requests at the endpoint to a
// graphql-ws session. The schema must also implement ws.Subscriber,
// which *graphql.Schema does when built with subscription resolvers.
func WithSubscriptions() Option {
	return func(h *Handler) { h.subscriptions = true }
}

/*
Attach binds a GraphQL endpoint onto the application's router.
Configuration problems (nil schema, conflicting tool sub-paths, both a
single tool and a tool list) are reported synchronously, before any
route is registered; they are boot-time failures, not request-time
ones.
*/
func Attach(app fiber.Router, routePath string, schema Executor, opts ...Option) error {
	if app == nil {
		return errors.ErrNilApp
	}

	if strings.TrimSpace(routePath) == "" {
		return errors.ErrEmptyRoutePath
	}

	if schema == nil {
		return errors.ErrNilSchema
	}

	h := &Handler{
		schema:    schema,
		routePath: routePath,
		maxAge:    DefaultMaxAge,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.singleTool != nil && len(h.toolList) > 0 {
		return errors.ErrToolAndTools
	}

	list := h.toolList
	if h.singleTool != nil {
		list = []tools.Tool{h.singleTool}
	}

	routes, err := tools.Routes(routePath, list)
	if err != nil {
		return err
	}

	if len(list) > 0 {
		h.primary = list[0]
	}

	if h.subscriptions {
		sub, ok := schema.(ws.Subscriber)
		if !ok {
			return errors.ErrNoSubscriber
		}
		h.transport = ws.NewTransport(sub)
	}

	app.All(routePath, h.serve)

	for _, route := range routes {
		tool := route.Tool
		app.Get(route.Path, func(c fiber.Ctx) error {
			return h.renderTool(c, tool)
		})
	}

	return nil
}

func (h *Handler) serve(c fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodOptions:
		return h.preflight(c)
	case fiber.MethodGet:
		if h.transport != nil && wantsUpgrade(c) {
			return fiberadaptor.HTTPHandler(h.transport)(c)
		}
		if h.primary != nil && wantsHTML(c) {
			return h.renderTool(c, h.primary)
		}
		return h.execute(c)
	case fiber.MethodPost:
		return h.execute(c)
	default:
		c.Set(fiber.HeaderAllow, "GET, POST")
		return writeRequestError(c, errors.NewRequestError(
			fiber.StatusMethodNotAllowed,
			"GraphQL only supports GET and POST requests."))
	}
}

func (h *Handler) execute(c fiber.Ctx) error {
	req, rerr := parseRequest(c)
	if rerr != nil {
		return writeRequestError(c, rerr)
	}

	if req.Query == "" {
		return writeRequestError(c, errors.NewRequestError(
			fiber.StatusBadRequest, "Must provide query string."))
	}

	if c.Method() == fiber.MethodGet {
		if op := operationType(req.Query, req.OperationName); op != "" && op != "query" {
			c.Set(fiber.HeaderAllow, "POST")
			return writeRequestError(c, errors.NewRequestError(
				fiber.StatusMethodNotAllowed,
				"Can only perform a %s operation from a POST request.", op))
		}
	}

	result := h.schema.Exec(c, req.Query, req.OperationName, req.Variables)

	return h.writeResult(c, result)
}

// writeResult serializes an engine result. Execution errors ride
// inside the errors array with status 200; only requests that never
// reached execution get a non-200 status.
func (h *Handler) writeResult(c fiber.Ctx, result *graphql.Response) error {
	var (
		payload []byte
		err     error
	)

	if h.pretty || c.Query("pretty") != "" {
		payload, err = json.MarshalIndent(result, "", "  ")
	} else {
		payload, err = json.Marshal(result)
	}

	if err != nil {
		log.Error("failed to encode graphql response", "path", h.routePath, "error", err)
		return writeRequestError(c, errors.NewRequestError(
			fiber.StatusInternalServerError, "Failed to encode response."))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(payload)
}

func (h *Handler) renderTool(c fiber.Ctx, tool tools.Tool) error {
	page, err := tool.Render(h.routePath)
	if err != nil {
		log.Error("failed to render tool page", "tool", tool.Name(), "error", err)
		return c.Status(fiber.StatusInternalServerError).
			SendString("failed to render " + tool.Name())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(page)
}

// preflight answers CORS preflight requests for apollo-style clients.
func (h *Handler) preflight(c fiber.Ctx) error {
	method := strings.ToUpper(c.Get(fiber.HeaderAccessControlRequestMethod))
	if !allowsMethod(method) {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	c.Set(fiber.HeaderAccessControlAllowOrigin, c.Get(fiber.HeaderOrigin))
	c.Set(fiber.HeaderAccessControlAllowMethods, allowedMethods)
	c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(h.maxAge))
	return c.SendStatus(fiber.StatusOK)
}

// allowsMethod matches the requested method against the accepted
// list exactly, never as a substring.
func allowsMethod(method string) bool {
	for _, allowed := range strings.Split(allowedMethods, ", ") {
		if allowed == method {
			return true
		}
	}
	return false
}

// wantsHTML reports whether a GET should receive the tool page rather
// than an API response. Same convention as express-graphql and
// friends: serve HTML when the Accept header asks for it and the
// caller did not force the API with ?raw.
func wantsHTML(c fiber.Ctx) bool {
	if c.Query("raw") != "" {
		return false
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), "text/html")
}

func wantsUpgrade(c fiber.Ctx) bool {
	return strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket")
}

func writeRequestError(c fiber.Ctx, rerr *errors.RequestError) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(rerr.Status).JSON(fiber.Map{
		"errors": []*errors.RequestError{rerr},
	})
}
