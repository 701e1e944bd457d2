package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docuchain-backend — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the document sharing API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docuchain-backend", "version": "v1.0.0" },
  "paths": {
    "/api/auth/register": {
      "post": { "summary": "Create an account", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "201": { "description": "account created, access token returned" }, "409": { "description": "email already registered" } } }
    },
    "/api/auth/login": {
      "post": { "summary": "Authenticate with email and password", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "access token returned" }, "401": { "description": "invalid credentials" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Blacklist the presented access token", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/auth/profile": {
      "get": { "summary": "Get the authenticated user", "responses": { "200": { "description": "user" } } }
    },
    "/api/users/search": {
      "get": { "summary": "Search users by name or email fragment", "parameters": [ { "name": "q", "in": "query", "required": true, "schema": {"type":"string"} } ], "responses": { "200": { "description": "public profiles" } } }
    },
    "/api/documents/upload": {
      "post": { "summary": "Upload a document (multipart, field 'file', optional 'title' and 'encrypt')", "responses": { "201": { "description": "document stored, registered and persisted" }, "400": { "description": "missing file, oversized or disallowed content type" }, "409": { "description": "identical content already uploaded" } } }
    },
    "/api/documents": {
      "get": { "summary": "List the caller's documents", "responses": { "200": { "description": "documents" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get document metadata", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "put": { "summary": "Rename a document (owner only)", "responses": { "200": { "description": "updated document" } } },
      "delete": { "summary": "Delete a document (owner only, soft delete)", "responses": { "200": { "description": "deleted" } } }
    },
    "/api/documents/{id}/download": {
      "get": { "summary": "Download the document payload", "responses": { "200": { "description": "file bytes with Content-Disposition" }, "403": { "description": "access denied" } } }
    },
    "/api/share/grant": {
      "post": { "summary": "Grant access to a user by email", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"documentId":{"type":"string"},"email":{"type":"string"},"permission":{"type":"string"}}}}}}, "responses": { "200": { "description": "access granted" }, "409": { "description": "already shared" } } }
    },
    "/api/share/revoke": {
      "post": { "summary": "Revoke a user's access", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"documentId":{"type":"string"},"email":{"type":"string"}}}}}}, "responses": { "200": { "description": "access revoked" }, "409": { "description": "not shared" } } }
    },
    "/api/share/batch-grant": {
      "post": { "summary": "Grant access to up to 50 users in one transaction", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"documentId":{"type":"string"},"emails":{"type":"array","items":{"type":"string"}},"permission":{"type":"string"}}}}}}, "responses": { "200": { "description": "per-email outcome lists" } } }
    },
    "/api/share/info/{id}": {
      "get": { "summary": "Sharing state across record store and ledger (owner only)", "responses": { "200": { "description": "shared-with entries and ledger accessors" } } }
    },
    "/api/share/check/{id}": {
      "get": { "summary": "Dual access verification for the caller", "responses": { "200": { "description": "local, onchain and combined verdicts" } } }
    },
    "/api/share/my-shares": {
      "get": { "summary": "Documents shared with the caller", "responses": { "200": { "description": "documents" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics exposition" } } } }
  }
}`
