// Package docs serves the API reference: the raw OpenAPI document and a
// Redoc page rendering it. Everything is embedded, the handler needs no
// network access of its own (the Redoc bundle itself loads from a CDN).
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// Handler serves the docs routes. Mount it under a stripped prefix; paths
// are relative to the mount point.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(redocPage))
		case "/openapi.yaml":
			w.Header().Set("Content-Type", "application/x-yaml")
			_, _ = w.Write(openAPIDocument)
		default:
			http.NotFound(w, r)
		}
	})
}

const redocPage = `<!DOCTYPE html>
<html>
<head>
  <title>Waterbill API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    body { margin: 0; }
  </style>
</head>
<body>
  <redoc spec-url="/docs/openapi.yaml" hide-download-button></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>
`
