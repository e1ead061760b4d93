// Package envelope translates between the control plane's schema-free JSON
// event envelope and the typed API Gateway request and response model.
//
// Decoding is manual: the event is parsed into a generic map[string]any and
// fields are projected one by one, tolerating envelopes of any shape.
// Optional fields degrade to their zero value when absent or ill-typed; only
// a structurally invalid payload or a missing HTTP method is a failure.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// DecodeError reports an envelope that parsed as JSON but cannot produce a
// usable request.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode request: field %q %s", e.Field, e.Reason)
}

// ParseEnvelope parses raw payload bytes into a generic JSON object. It
// fails only when the payload is not a JSON object at all.
func ParseEnvelope(data []byte) (map[string]any, error) {
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return env, nil
}

// DecodeRequest projects a generic envelope into an API Gateway proxy
// request. httpMethod is the only required field; path defaults to "/", and
// everything else degrades to its zero value when absent or ill-typed.
func DecodeRequest(env map[string]any) (events.APIGatewayProxyRequest, error) {
	var req events.APIGatewayProxyRequest

	method, ok := env["httpMethod"].(string)
	if !ok {
		return req, &DecodeError{Field: "httpMethod", Reason: "missing or not a string"}
	}
	req.HTTPMethod = method

	req.Path = stringField(env, "path")
	if req.Path == "" {
		req.Path = "/"
	}
	req.Body = stringField(env, "body")
	req.Resource = stringField(env, "resource")
	if b, ok := env["isBase64Encoded"].(bool); ok {
		req.IsBase64Encoded = b
	}

	req.Headers = stringMapField(env, "headers")
	req.QueryStringParameters = stringMapField(env, "queryStringParameters")
	req.PathParameters = stringMapField(env, "pathParameters")
	req.StageVariables = stringMapField(env, "stageVariables")
	req.MultiValueHeaders = multiValueField(env, "multiValueHeaders")
	req.MultiValueQueryStringParameters = multiValueField(env, "multiValueQueryStringParameters")

	return req, nil
}

// EncodeResponse converts a typed response into the generic envelope shape
// posted back to the control plane. Status code and body are always emitted;
// the optional fields only when set, so a minimal response round-trips to a
// minimal envelope.
func EncodeResponse(resp events.APIGatewayProxyResponse) map[string]any {
	env := map[string]any{
		"statusCode": resp.StatusCode,
		"body":       resp.Body,
	}
	if resp.Headers != nil {
		env["headers"] = resp.Headers
	}
	if resp.IsBase64Encoded {
		env["isBase64Encoded"] = true
	}
	if resp.MultiValueHeaders != nil {
		env["multiValueHeaders"] = resp.MultiValueHeaders
	}
	return env
}

func stringField(env map[string]any, key string) string {
	s, _ := env[key].(string)
	return s
}

// stringMapField copies a JSON object of strings. Entries whose value is not
// a string are dropped; a value that is not an object at all counts as
// absent.
func stringMapField(env map[string]any, key string) map[string]string {
	raw, ok := env[key].(map[string]any)
	if !ok {
		return nil
	}
	m := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	return m
}

func multiValueField(env map[string]any, key string) map[string][]string {
	raw, ok := env[key].(map[string]any)
	if !ok {
		return nil
	}
	m := make(map[string][]string, len(raw))
	for k, v := range raw {
		items, ok := v.([]any)
		if !ok {
			continue
		}
		vals := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				vals = append(vals, s)
			}
		}
		m[k] = vals
	}
	return m
}
