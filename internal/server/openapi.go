package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

const errorSchemaRef = "#/components/schemas/ApiError"

// publicPaths are served without credentials.
func publicPaths(basePath string) []string {
	out := make([]string, 0, 3)
	for _, p := range []string{"health", "auth/dev/login", "openapi.json"} {
		out = append(out, path.Join("/", basePath, p))
	}
	return out
}

func registerDocs(r chi.Router, basePath string) {
	page := swaggerHTML(basePath)
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, page)
	})
}

// registerOpenAPI serves the document once it is decorated with the shared
// error envelope and the security schemes the auth middleware accepts.
func registerOpenAPI(r chi.Router, api huma.API, basePath string, authCfg AuthConfig) {
	var (
		once sync.Once
		spec []byte
		err  error
	)
	r.Get(path.Join("/", basePath, "openapi.json"), func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			decorateOpenAPI(oas, basePath, authCfg)
			spec, err = json.Marshal(oas)
		})
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "openapi: "+err.Error(), nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func eachOperation(oas *huma.OpenAPI, fn func(route string, op *huma.Operation)) {
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch, item.Head, item.Options, item.Trace,
		} {
			if op != nil {
				fn(route, op)
			}
		}
	}
}

func decorateOpenAPI(oas *huma.OpenAPI, basePath string, authCfg AuthConfig) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	schemes := oas.Components.SecuritySchemes
	schemes["bearerAuth"] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	schemes["apiKeyAuth"] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Api-Key"}
	security := []map[string][]string{{"bearerAuth": {}}, {"apiKeyAuth": {}}}
	if authCfg.AllowActorHeader {
		schemes["actorHeader"] = &huma.SecurityScheme{
			Type:        "apiKey",
			In:          "header",
			Name:        "X-Actor-Id",
			Description: "Unauthenticated operator id; enabled for local development only.",
		}
		security = append(security, map[string][]string{"actorHeader": {}})
	}
	oas.Security = security

	open := map[string]bool{}
	for _, p := range publicPaths(basePath) {
		open[p] = true
	}
	eachOperation(oas, func(route string, op *huma.Operation) {
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}
		op.Responses["default"] = &huma.Response{
			Description: "Error envelope",
			Content: map[string]*huma.MediaType{
				"application/json": {Schema: &huma.Schema{Ref: errorSchemaRef}},
			},
		}
		if open[route] {
			op.Security = []map[string][]string{}
			return
		}
		op.Security = security
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>studioline API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      %s
    </p>
  </body>
</html>`, specURL, strings.Join([]string{
		"Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.",
		"Errors share one envelope: {\"error\": {\"code\", \"message\", \"details\"}}.",
	}, " "))
}
