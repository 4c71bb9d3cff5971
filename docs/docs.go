// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {"tags": ["Auth"], "summary": "Login", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/auth/refresh": {
            "post": {"tags": ["Auth"], "summary": "Refresh access token", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/auth/logout": {
            "post": {"tags": ["Auth"], "summary": "Logout", "responses": {"200": {"description": "OK"}}}
        },
        "/auth/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Get current user", "responses": {"200": {"description": "OK"}}}
        },
        "/units": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "List blood units", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "Register blood unit", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}
        },
        "/units/export": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "Export blood units", "produces": ["application/x-ndjson"], "responses": {"200": {"description": "OK"}}}
        },
        "/units/{number}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "Get blood unit", "parameters": [{"type": "string", "name": "number", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/units/{number}/history": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "Unit status history", "parameters": [{"type": "string", "name": "number", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/units/{number}/status": {
            "patch": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "Change unit status", "parameters": [{"type": "string", "name": "number", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/units/{number}/discard": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Units"], "summary": "Discard blood unit", "parameters": [{"type": "string", "name": "number", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/reservations": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Reservations"], "summary": "Reserve units", "responses": {"201": {"description": "Created"}, "409": {"description": "insufficient_stock carries available and requested"}}}
        },
        "/reservations/{request_id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Reservations"], "summary": "Get reservation", "parameters": [{"type": "string", "name": "request_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/reservations/{request_id}/commit": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Reservations"], "summary": "Commit reservation", "parameters": [{"type": "string", "name": "request_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/reservations/{request_id}/release": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Reservations"], "summary": "Release reservation", "parameters": [{"type": "string", "name": "request_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/requests": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "List hospital requests", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "File hospital request", "responses": {"201": {"description": "Created"}}}
        },
        "/requests/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "Get hospital request", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/requests/{id}/approve": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "Approve hospital request", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/requests/{id}/fulfill": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "Fulfill hospital request", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/requests/{id}/reject": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "Reject hospital request", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/requests/{id}/cancel": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Requests"], "summary": "Cancel hospital request", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/donors": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Donors"], "summary": "List donors", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Donors"], "summary": "Register donor", "responses": {"201": {"description": "Created"}}}
        },
        "/donors/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Donors"], "summary": "Get donor", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/donors/{id}/donations": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Donors"], "summary": "Record donation", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "donor_ineligible"}}}
        },
        "/donors/{id}/collections": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Donors"], "summary": "Collect unit from donor", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/inventory/summary": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Inventory"], "summary": "Inventory summary", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/sweep": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Inventory"], "summary": "Run expiry sweep", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/inventory/eligibility": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Inventory"], "summary": "Restore donor eligibility", "responses": {"200": {"description": "OK"}}}
        },
        "/reference/shelf-life": {
            "get": {"tags": ["Inventory"], "summary": "Shelf life per component", "responses": {"200": {"description": "OK"}}}
        },
        "/staff": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Staff"], "summary": "List staff", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Staff"], "summary": "Create staff account", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Blood Bank Inventory API",
	Description:      "Blood unit lifecycle, expiry tracking and allocation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
