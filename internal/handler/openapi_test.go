package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveOpenAPI(t *testing.T, publicURLs []string) (string, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, NewOpenAPIHandler(publicURLs).Serve(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return rec.Body.String(), doc
}

func TestOpenAPIHandler_ServersFromPublicURLs(t *testing.T) {
	_, doc := serveOpenAPI(t, []string{"https://loans.example.com/", " ", "http://localhost:9090"})

	servers := asSlice(doc["servers"])
	require.Len(t, servers, 2)
	assert.Equal(t, "https://loans.example.com/api", asMap(servers[0])["url"])
	assert.Equal(t, "http://localhost:9090/api", asMap(servers[1])["url"])
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestOpenAPIHandler_ConvertsLoanOperations(t *testing.T) {
	raw, doc := serveOpenAPI(t, []string{"http://localhost:8080"})

	assert.NotContains(t, raw, "#/definitions/")
	assert.NotContains(t, raw, `"in":"body"`)

	put := asMap(asMap(asMap(doc["paths"])["/loans"])["put"])
	require.NotNil(t, put)

	body := asMap(put["requestBody"])
	assert.Equal(t, true, body["required"])
	schema := asMap(asMap(asMap(body["content"])["application/json"])["schema"])
	assert.Equal(t, "#/components/schemas/handler.UpdateLoanRequest", schema["$ref"])

	params := asSlice(put["parameters"])
	require.Len(t, params, 1)
	id := asMap(params[0])
	assert.Equal(t, "id", id["name"])
	assert.Equal(t, "query", id["in"])
	assert.Equal(t, "string", asMap(id["schema"])["type"])
	assert.NotContains(t, id, "type")

	ok := asMap(asMap(put["responses"])["200"])
	okSchema := asMap(asMap(asMap(ok["content"])["application/json"])["schema"])
	assert.Equal(t, "#/components/schemas/view.LoanResponse", okSchema["$ref"])

	deleted := asMap(asMap(asMap(asMap(doc["paths"])["/loans"])["delete"])["responses"])
	assert.NotContains(t, asMap(deleted["204"]), "content")

	components := asMap(doc["components"])
	assert.Contains(t, asMap(components["schemas"]), "view.LoanResponse")
	assert.Contains(t, asMap(components["securitySchemes"]), "BearerAuth")
}
