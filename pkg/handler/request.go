package handler

import (
	"encoding/json"
	"mime"

	"github.com/gofiber/fiber/v3"

	"github.com/theapemachine/fibergraphql/pkg/errors"
)

/*
Request carries the three values a GraphQL-over-HTTP call can supply,
regardless of which part of the request they arrived in.
*/
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]any
}

/*
parseRequest extracts the query, operation name and variables from the
query string and, for POSTs, from the body. Query-string values are
read first so body values can override them, matching the usual
GraphQL-over-HTTP layering.
*/
func parseRequest(c fiber.Ctx) (*Request, *errors.RequestError) {
	req := &Request{Variables: map[string]any{}}

	if raw := c.Query("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
			return nil, errors.NewRequestError(
				fiber.StatusBadRequest, "Variables are invalid JSON.")
		}
	}
	req.OperationName = c.Query("operationName")

	if c.Method() == fiber.MethodGet {
		req.Query = c.Query("query")
		return req, nil
	}

	return parseBody(c, req)
}

func parseBody(c fiber.Ctx, req *Request) (*Request, *errors.RequestError) {
	mediaType := c.Get(fiber.HeaderContentType)
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}

	switch mediaType {
	case fiber.MIMEApplicationJSON:
		var body struct {
			Query         string          `json:"query"`
			OperationName string          `json:"operationName"`
			Variables     json.RawMessage `json:"variables"`
		}

		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil, errors.NewRequestError(
				fiber.StatusBadRequest, "POST body sent invalid JSON.")
		}

		req.Query = body.Query

		if body.OperationName != "" {
			req.OperationName = body.OperationName
		}

		if rerr := mergeVariables(req.Variables, body.Variables); rerr != nil {
			return nil, rerr
		}
	case "application/graphql":
		req.Query = string(c.Body())
	case fiber.MIMEApplicationForm, fiber.MIMEMultipartForm:
		req.Query = c.FormValue("query")

		if op := c.FormValue("operationName"); op != "" {
			req.OperationName = op
		}

		if raw := c.FormValue("variables"); raw != "" {
			if rerr := mergeVariables(req.Variables, json.RawMessage(raw)); rerr != nil {
				return nil, rerr
			}
		}
	default:
		// Unknown payloads fall through with no query; the caller
		// reports the missing query string.
	}

	return req, nil
}

// mergeVariables layers body variables over query-string variables.
// Clients sometimes double-encode variables as a JSON string, so that
// form is accepted too.
func mergeVariables(dst map[string]any, raw json.RawMessage) *errors.RequestError {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var vars map[string]any

	if err := json.Unmarshal(raw, &vars); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return errors.NewRequestError(
				fiber.StatusBadRequest, "Variables are invalid JSON.")
		}
		if err := json.Unmarshal([]byte(encoded), &vars); err != nil {
			return errors.NewRequestError(
				fiber.StatusBadRequest, "Variables are invalid JSON.")
		}
	}

	for k, v := range vars {
		dst[k] = v
	}

	return nil
}
