// Package product implements the sample product API dispatched by the
// runtime: a seeded in-memory catalog and a router over the API Gateway
// request model.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// corsHeaders is attached to every response the API produces.
var corsHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization",
}

// apiResponse is the JSON body wrapper every route answers with.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// API routes decoded invocations to the product store.
type API struct {
	store *Store
	log   zerolog.Logger
}

// NewAPI builds the API around a store.
func NewAPI(store *Store, log zerolog.Logger) *API {
	return &API{store: store, log: log}
}

// Handle implements the application handler contract. Domain failures
// become ordinary 4xx responses and unexpected ones a 500, so the runtime
// never sees an error from this handler.
func (a *API) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp, err := a.route(req)
	if err != nil {
		a.log.Error().Err(err).
			Str("method", req.HTTPMethod).
			Str("path", req.Path).
			Msg("request failed")
		return a.respond(http.StatusInternalServerError, errorJSON("Internal server error: "+err.Error())), nil
	}
	return resp, nil
}

func (a *API) route(req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	method := req.HTTPMethod
	path := req.Path
	if path == "" {
		path = "/"
	}

	// CORS preflight short-circuits before method dispatch.
	if strings.EqualFold(method, http.MethodOptions) {
		return a.respond(http.StatusOK, `"ok"`), nil
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return a.handleGet(path, req)
	case http.MethodPost:
		return a.handlePost(path, req)
	case http.MethodDelete:
		return a.handleDelete(path)
	default:
		return a.respond(http.StatusMethodNotAllowed, errorJSON("Method not allowed: "+method)), nil
	}
}

func (a *API) handleGet(path string, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case path == "/products":
		if category, ok := req.QueryStringParameters["category"]; ok {
			found := a.store.SearchByCategory(category)
			return a.respond(http.StatusOK, okJSON(fmt.Sprintf("Found %d products", len(found)), found)), nil
		}
		return a.respond(http.StatusOK, okJSON("OK", a.store.List())), nil

	case strings.HasPrefix(path, "/products/") && len(path) > len("/products/"):
		id := strings.TrimPrefix(path, "/products/")
		p, ok := a.store.Get(id)
		if !ok {
			return a.respond(http.StatusNotFound, errorJSON("Product not found: "+id)), nil
		}
		return a.respond(http.StatusOK, okJSON("OK", p)), nil

	case path == "/health":
		health := map[string]any{
			"status":    "healthy",
			"runtime":   "custom",
			"go":        runtime.Version(),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		}
		return a.respond(http.StatusOK, okJSON("Service is healthy", health)), nil

	default:
		return a.respond(http.StatusNotFound, errorJSON("Not found: "+path)), nil
	}
}

func (a *API) handlePost(path string, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if path != "/products" {
		return a.respond(http.StatusNotFound, errorJSON("Not found: "+path)), nil
	}
	if strings.TrimSpace(req.Body) == "" {
		return a.respond(http.StatusBadRequest, errorJSON("Request body is required")), nil
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("parse product body: %w", err)
	}

	name, _ := body["name"].(string)
	description, _ := body["description"].(string)
	category, _ := body["category"].(string)
	price, _ := body["price"].(float64)

	created, err := a.store.Create(Product{
		Name:        name,
		Description: description,
		Price:       price,
		Category:    category,
	})
	if err != nil {
		return a.respond(http.StatusBadRequest, errorJSON("Validation error: "+err.Error())), nil
	}
	return a.respond(http.StatusCreated, okJSON("Product created", created)), nil
}

func (a *API) handleDelete(path string) (events.APIGatewayProxyResponse, error) {
	if !strings.HasPrefix(path, "/products/") || len(path) == len("/products/") {
		return a.respond(http.StatusNotFound, errorJSON("Not found: "+path)), nil
	}
	id := strings.TrimPrefix(path, "/products/")
	p, ok := a.store.Delete(id)
	if !ok {
		return a.respond(http.StatusNotFound, errorJSON("Product not found: "+id)), nil
	}
	return a.respond(http.StatusOK, okJSON("Product deleted", p)), nil
}

func (a *API) respond(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    corsHeaders,
		Body:       body,
	}
}

func okJSON(message string, data any) string {
	return toJSON(apiResponse{Success: true, Message: message, Data: data})
}

func errorJSON(message string) string {
	return toJSON(apiResponse{Success: false, Message: message})
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"success":false,"message":"Serialization failed"}`
	}
	return string(data)
}
