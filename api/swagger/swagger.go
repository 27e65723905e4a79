package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Uni Course API",
        "description": "Course administration API with bulk student-import reconciliation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Offerings", "description": "Course offering management"},
        {"name": "Imports", "description": "Bulk student-import staging and commit"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Return the authenticated user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/offerings": {
            "get": {
                "tags": ["Offerings"],
                "summary": "List course offerings",
                "parameters": [
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "term", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Offerings"],
                "summary": "Create a course offering",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/offerings/{offeringId}": {
            "get": {
                "tags": ["Offerings"],
                "summary": "Get offering detail",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/offerings/{offeringId}/roster": {
            "get": {
                "tags": ["Offerings"],
                "summary": "List students enrolled in an offering",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/offerings/{offeringId}/import/preview": {
            "post": {
                "tags": ["Imports"],
                "summary": "Stage an uploaded student batch for review",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePreviewRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid offering id or payload"},
                    "404": {"description": "Offering not found"}
                }
            }
        },
        "/offerings/{offeringId}/import/{sessionId}": {
            "get": {
                "tags": ["Imports"],
                "summary": "Read a staged import session",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "sessionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session not found"},
                    "410": {"description": "Session expired"}
                }
            }
        },
        "/offerings/{offeringId}/import/{sessionId}/rows/{index}": {
            "put": {
                "tags": ["Imports"],
                "summary": "Edit a staged row and re-classify it",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "sessionId", "in": "path", "required": true, "type": "string"},
                    {"name": "index", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session or row not found"},
                    "410": {"description": "Session expired"}
                }
            },
            "delete": {
                "tags": ["Imports"],
                "summary": "Remove a staged row from the batch",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "sessionId", "in": "path", "required": true, "type": "string"},
                    {"name": "index", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Session or row not found"}
                }
            }
        },
        "/offerings/{offeringId}/import/{sessionId}/confirm": {
            "post": {
                "tags": ["Imports"],
                "summary": "Commit the staged batch into enrollment state",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "sessionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Per-row results with summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session not found"},
                    "410": {"description": "Session expired"}
                }
            }
        },
        "/offerings/{offeringId}/import/{sessionId}/export": {
            "get": {
                "tags": ["Imports"],
                "summary": "Download the staged batch as CSV or PDF",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "sessionId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreatePreviewRequest": {
            "type": "object",
            "properties": {
                "rows": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/RawImportRow"}
                }
            }
        },
        "RawImportRow": {
            "type": "object",
            "properties": {
                "student_code": {"type": "string"},
                "email": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
