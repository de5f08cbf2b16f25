package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dafibh/loanbook/loanbook-backend/docs"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/swaggo/swag"
)

const jsonMediaType = "application/json"

// OpenAPIHandler serves the generated swagger 2.0 docs as an OpenAPI 3 document
type OpenAPIHandler struct {
	servers []openAPIServer
}

type openAPIServer struct {
	URL string `json:"url"`
}

type openAPIDocument struct {
	OpenAPI    string                 `json:"openapi"`
	Info       map[string]interface{} `json:"info"`
	Servers    []openAPIServer        `json:"servers"`
	Paths      map[string]interface{} `json:"paths"`
	Components map[string]interface{} `json:"components"`
}

// NewOpenAPIHandler lists every public base URL as a server rooted at the API base path
func NewOpenAPIHandler(publicURLs []string) *OpenAPIHandler {
	servers := make([]openAPIServer, 0, len(publicURLs))
	for _, u := range publicURLs {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" {
			continue
		}
		servers = append(servers, openAPIServer{URL: u + docs.SwaggerInfo.BasePath})
	}
	return &OpenAPIHandler{servers: servers}
}

// Serve writes the OpenAPI 3 document
func (h *OpenAPIHandler) Serve(c echo.Context) error {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read swagger doc")
		return NewInternalError(c, "Failed to read API docs")
	}

	var swagger2 map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &swagger2); err != nil {
		log.Error().Err(err).Msg("Failed to parse swagger doc")
		return NewInternalError(c, "Failed to read API docs")
	}

	return c.JSON(http.StatusOK, openAPIDocument{
		OpenAPI: "3.0.3",
		Info:    asMap(swagger2["info"]),
		Servers: h.servers,
		Paths:   convertPaths(asMap(swagger2["paths"])),
		Components: map[string]interface{}{
			"schemas":         rewriteRefs(asMap(swagger2["definitions"])),
			"securitySchemes": asMap(swagger2["securityDefinitions"]),
		},
	})
}

func convertPaths(paths map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(paths))
	for path, item := range paths {
		operations := asMap(item)
		converted := make(map[string]interface{}, len(operations))
		for method, op := range operations {
			converted[method] = convertOperation(asMap(op))
		}
		out[path] = converted
	}
	return out
}

// convertOperation moves the body parameter into requestBody and wraps
// response schemas in JSON content
func convertOperation(op map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(op))
	for key, value := range op {
		switch key {
		case "parameters", "responses", "consumes", "produces":
		default:
			out[key] = value
		}
	}

	var params []interface{}
	for _, p := range asSlice(op["parameters"]) {
		param := asMap(p)
		if param["in"] == "body" {
			body := map[string]interface{}{
				"required": param["required"] == true,
				"content":  jsonContent(param["schema"]),
			}
			if desc, ok := param["description"]; ok {
				body["description"] = desc
			}
			out["requestBody"] = body
			continue
		}
		params = append(params, convertParameter(param))
	}
	if len(params) > 0 {
		out["parameters"] = params
	}

	responses := make(map[string]interface{})
	for code, r := range asMap(op["responses"]) {
		resp := asMap(r)
		converted := map[string]interface{}{"description": resp["description"]}
		if schema, ok := resp["schema"]; ok {
			converted["content"] = jsonContent(schema)
		}
		responses[code] = converted
	}
	out["responses"] = responses
	return out
}

// convertParameter moves the type fields of a query parameter under schema
func convertParameter(param map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	schema := make(map[string]interface{})
	for key, value := range param {
		switch key {
		case "type", "format", "enum":
			schema[key] = value
		default:
			out[key] = value
		}
	}
	if len(schema) > 0 {
		out["schema"] = schema
	}
	return out
}

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		jsonMediaType: map[string]interface{}{"schema": rewriteRefs(schema)},
	}
}

// rewriteRefs points definition refs at component schemas
func rewriteRefs(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for key, value := range t {
			if ref, ok := value.(string); ok && key == "$ref" {
				out[key] = strings.Replace(ref, "#/definitions/", "#/components/schemas/", 1)
				continue
			}
			out[key] = rewriteRefs(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = rewriteRefs(item)
		}
		return out
	default:
		return v
	}
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}
