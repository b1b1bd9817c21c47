package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/tj/assert"

	"github.com/theapemachine/fibergraphql/pkg/errors"
	"github.com/theapemachine/fibergraphql/pkg/tools"
)

const testSchema = `
	schema {
		query: Query
		mutation: Mutation
	}

	type Query {
		hello: String!
	}

	type Mutation {
		shout(word: String!): String!
	}
`

type testResolver struct{}

func (*testResolver) Hello() string { return "world" }

func (*testResolver) Shout(args struct{ Word string }) string {
	return strings.ToUpper(args.Word)
}

func newTestApp(t *testing.T, opts ...Option) *fiber.App {
	t.Helper()

	schema := graphql.MustParseSchema(testSchema, &testResolver{})
	app := fiber.New()
	assert.NoError(t, Attach(app, "/graphql", schema, opts...))
	return app
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()

	raw, err := io.ReadAll(res.Body)
	assert.NoError(t, err)

	var body map[string]any
	assert.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestAttachConfigurationErrors(t *testing.T) {
	schema := graphql.MustParseSchema(testSchema, &testResolver{})

	tests := []struct {
		name    string
		attach  func(app *fiber.App) error
		wantErr error
	}{
		{
			name: "nil schema",
			attach: func(app *fiber.App) error {
				return Attach(app, "/graphql", nil)
			},
			wantErr: errors.ErrNilSchema,
		},
		{
			name: "empty route path",
			attach: func(app *fiber.App) error {
				return Attach(app, "  ", schema)
			},
			wantErr: errors.ErrEmptyRoutePath,
		},
		{
			name: "nil app",
			attach: func(app *fiber.App) error {
				return Attach(nil, "/graphql", schema)
			},
			wantErr: errors.ErrNilApp,
		},
		{
			name: "single tool and tool list",
			attach: func(app *fiber.App) error {
				return Attach(app, "/graphql", schema,
					WithTool(tools.GraphiQL{}),
					WithTools(tools.Voyager{}))
			},
			wantErr: errors.ErrToolAndTools,
		},
		{
			name: "subscriptions without subscriber",
			attach: func(app *fiber.App) error {
				return Attach(app, "/graphql", fakeExecutor{}, WithSubscriptions())
			},
			wantErr: errors.ErrNoSubscriber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attach(fiber.New())
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestAttachDuplicateToolPaths(t *testing.T) {
	schema := graphql.MustParseSchema(testSchema, &testResolver{})

	tests := []struct {
		name string
		list []tools.Tool
	}{
		{
			name: "same derived path",
			list: []tools.Tool{tools.GraphiQL{}, tools.GraphiQL{}},
		},
		{
			name: "explicit override collides",
			list: []tools.Tool{
				tools.GraphiQL{},
				tools.Voyager{SubPath: "/graphql/graphiql"},
			},
		},
		{
			name: "tool shadows the endpoint",
			list: []tools.Tool{tools.Voyager{SubPath: "/graphql"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Attach(fiber.New(), "/graphql", schema, WithTools(tt.list...))
			assert.Error(t, err)
			assert.IsType(t, &errors.RegistrationError{}, err)
		})
	}
}

func TestNoToolsRegistersOnlyEndpoint(t *testing.T) {
	app := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/graphql/graphiql", nil))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// A browser GET at the endpoint falls through to the API when no
	// tool is configured.
	req := httptest.NewRequest(http.MethodGet, "/graphql?query={hello}", nil)
	req.Header.Set("Accept", "text/html")
	res, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "application/json")
}

func TestBrowserGetServesToolPage(t *testing.T) {
	app := newTestApp(t, WithTool(tools.GraphiQL{}))

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Header.Set("Accept", "text/html")

	res, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

	page, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Contains(t, string(page), "/graphql")
}

func TestBrowserGetRawBypassesToolPage(t *testing.T) {
	app := newTestApp(t, WithTool(tools.GraphiQL{}))

	req := httptest.NewRequest(http.MethodGet, "/graphql?raw=1&query={hello}", nil)
	req.Header.Set("Accept", "text/html")

	res, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "application/json")
}

func TestPostQuery(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query": "{ __typename hello }"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := decodeBody(t, res)
	assert.NotContains(t, body, "errors")
	assert.Equal(t, map[string]any{
		"__typename": "Query",
		"hello":      "world",
	}, body["data"])
}

func TestPostInvalidFieldKeepsStatus200(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query": "{ invalidField }"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := decodeBody(t, res)
	assert.NotEmpty(t, body["errors"])
	assert.NotContains(t, body, "data")
}

func TestRequestFormatErrors(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		contentType string
		wantMessage string
	}{
		{
			name:        "unparseable body",
			target:      "/graphql",
			body:        `{"query": invalid`,
			contentType: "application/json",
			wantMessage: "POST body sent invalid JSON.",
		},
		{
			name:        "missing query",
			target:      "/graphql",
			body:        `{}`,
			contentType: "application/json",
			wantMessage: "Must provide query string.",
		},
		{
			name:        "invalid query-string variables",
			target:      "/graphql?variables={broken",
			body:        `{"query": "{ hello }"}`,
			contentType: "application/json",
			wantMessage: "Variables are invalid JSON.",
		},
		{
			name:        "invalid body variables",
			target:      "/graphql",
			body:        `{"query": "{ hello }", "variables": 42}`,
			contentType: "application/json",
			wantMessage: "Variables are invalid JSON.",
		},
		{
			name:        "unknown content type has no query",
			target:      "/graphql",
			body:        `query`,
			contentType: "text/csv",
			wantMessage: "Must provide query string.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			res, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)

			body := decodeBody(t, res)
			errs := body["errors"].([]any)
			assert.NotEmpty(t, errs)
			assert.Equal(t, tt.wantMessage, errs[0].(map[string]any)["message"])
		})
	}
}

func TestGetQueryString(t *testing.T) {
	app := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(
		http.MethodGet, "/graphql?query={hello}", nil))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := decodeBody(t, res)
	assert.Equal(t, map[string]any{"hello": "world"}, body["data"])
}

func TestGetMutationRejected(t *testing.T) {
	app := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/graphql?query=mutation%20{%20shout(word:%20%22hi%22)%20}", nil))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, "POST", res.Header.Get("Allow"))
}

func TestMethodNotAllowed(t *testing.T) {
	app := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodPut, "/graphql", nil))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, "GET, POST", res.Header.Get("Allow"))
}

func TestVariables(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(
		`{"query": "mutation ($word: String!) { shout(word: $word) }", "variables": {"word": "hello"}}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	assert.NoError(t, err)

	body := decodeBody(t, res)
	assert.Equal(t, map[string]any{"shout": "HELLO"}, body["data"])
}

func TestBodyVariablesOverrideQueryString(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost,
		`/graphql?variables={"word":"ignored"}`, strings.NewReader(
			`{"query": "mutation ($word: String!) { shout(word: $word) }", "variables": {"word": "body"}}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	assert.NoError(t, err)

	body := decodeBody(t, res)
	assert.Equal(t, map[string]any{"shout": "BODY"}, body["data"])
}

func TestGraphQLContentType(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader("{ hello }"))
	req.Header.Set("Content-Type", "application/graphql")

	res, err := app.Test(req)
	assert.NoError(t, err)

	body := decodeBody(t, res)
	assert.Equal(t, map[string]any{"hello": "world"}, body["data"])
}

func TestFormContentType(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader("query={hello}"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := app.Test(req)
	assert.NoError(t, err)

	body := decodeBody(t, res)
	assert.Equal(t, map[string]any{"hello": "world"}, body["data"])
}

func TestPrettyOutput(t *testing.T) {
	app := newTestApp(t, WithPretty())

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query": "{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	assert.NoError(t, err)

	raw, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"data\"")
}

func TestPrettyQueryParam(t *testing.T) {
	app := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(
		http.MethodGet, "/graphql?query={hello}&pretty=1", nil))
	assert.NoError(t, err)

	raw, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"data\"")
}

func TestThreeToolsThreeRoutes(t *testing.T) {
	app := newTestApp(t, WithTools(
		tools.GraphiQL{},
		tools.Playground{},
		tools.Voyager{},
	))

	for _, path := range []string{
		"/graphql/graphiql",
		"/graphql/playground",
		"/graphql/voyager",
	} {
		res, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

		page, err := io.ReadAll(res.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(page), "/graphql")
	}
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		wantStatus int
	}{
		{name: "allowed method", method: "POST", wantStatus: http.StatusOK},
		{name: "disallowed method", method: "PATCH", wantStatus: http.StatusBadRequest},
		{name: "missing method", method: "", wantStatus: http.StatusBadRequest},
		{name: "fragment of allowed method", method: "ET", wantStatus: http.StatusBadRequest},
		{name: "method list", method: "GET, POST", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, WithMaxAge(600))

			req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
			req.Header.Set("Origin", "http://example.com")
			if tt.method != "" {
				req.Header.Set("Access-Control-Request-Method", tt.method)
			}

			res, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "http://example.com",
					res.Header.Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "GET, POST, PUT, DELETE",
					res.Header.Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "600", res.Header.Get("Access-Control-Max-Age"))
			}
		})
	}
}

// fakeExecutor satisfies Executor without implementing ws.Subscriber.
type fakeExecutor struct{}

func (fakeExecutor) Exec(ctx context.Context, queryString string, operationName string, variables map[string]any) *graphql.Response {
	return &graphql.Response{}
}
