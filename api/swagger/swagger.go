package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CMS Admin API",
        "description": "Authorization, audit and compliance endpoints of the CMS admin",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login and caller identity"},
        {"name": "Profile", "description": "Self-service account actions"},
        {"name": "Pages", "description": "Content pages with ownership checks"},
        {"name": "Users", "description": "User administration and role changes"},
        {"name": "Audit", "description": "Audit trail, statistics and compliance reports"},
        {"name": "System", "description": "Health and runtime metrics"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["System"], "summary": "Liveness check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check",
                "responses": {"200": {"description": "Dependencies reachable"}, "503": {"description": "A dependency is unavailable"}}
            }
        },
        "/metrics": {
            "get": {"tags": ["System"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for an access token",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/me/permissions": {
            "get": {
                "tags": ["Auth"],
                "summary": "Effective permissions of the current user",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/profile": {
            "put": {
                "tags": ["Profile"],
                "summary": "Update own profile",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateProfileRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Validation error or wrong current password"}}
            }
        },
        "/api/profile/deactivate": {
            "post": {
                "tags": ["Profile"],
                "summary": "Deactivate own account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/DeactivateRequest"}}],
                "responses": {"204": {"description": "Deactivated"}, "400": {"description": "Confirmation password mismatch"}}
            }
        },
        "/api/pages": {
            "get": {
                "tags": ["Pages"],
                "summary": "List pages",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "owner", "type": "string"},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Pages"],
                "summary": "Create a page",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/pages/{id}": {
            "get": {"tags": ["Pages"], "summary": "Get a page", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"tags": ["Pages"], "summary": "Update a page", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "403": {"description": "Not the owner"}}},
            "delete": {"tags": ["Pages"], "summary": "Delete a page", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"204": {"description": "Deleted"}, "403": {"description": "Not the owner"}}}
        },
        "/api/admin/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "role", "type": "string", "enum": ["VIEWER", "EDITOR", "ADMIN"]},
                    {"in": "query", "name": "active", "type": "boolean"},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {"tags": ["Users"], "summary": "Create a user", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Email already used"}}}
        },
        "/api/admin/users/{id}": {
            "get": {"tags": ["Users"], "summary": "Get a user", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Users"], "summary": "Update a user", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/users/{id}/role": {
            "put": {
                "tags": ["Users"],
                "summary": "Change a user's role",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ChangeRoleRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Own role or insufficient privileges"}}
            }
        },
        "/api/admin/users/{id}/status": {
            "patch": {"tags": ["Users"], "summary": "Activate or deactivate a user", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "403": {"description": "Own account"}}}
        },
        "/api/admin/users/{id}/role-history": {
            "get": {"tags": ["Users"], "summary": "Role change history of a user", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/audit/logs": {
            "get": {
                "tags": ["Audit"],
                "summary": "Query audit logs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "userId", "type": "string"},
                    {"in": "query", "name": "action", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"in": "query", "name": "resource", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"in": "query", "name": "classification", "type": "string"},
                    {"in": "query", "name": "startDate", "type": "string"},
                    {"in": "query", "name": "endDate", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/admin/audit/stats": {
            "get": {"tags": ["Audit"], "summary": "Audit statistics", "security": [{"BearerAuth": []}], "parameters": [{"in": "query", "name": "days", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/audit/compliance": {
            "get": {"tags": ["Audit"], "summary": "Compliance report for a date range", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Missing dates"}}}
        },
        "/api/admin/audit/integrity": {
            "get": {"tags": ["Audit"], "summary": "Verify stored audit records", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/audit/security-events": {
            "get": {"tags": ["Audit"], "summary": "List security events", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/audit/export": {
            "get": {
                "tags": ["Audit"],
                "summary": "Export audit logs",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/json", "application/pdf"],
                "parameters": [{"in": "query", "name": "format", "type": "string", "enum": ["csv", "json", "pdf"]}],
                "responses": {"200": {"description": "Attachment"}, "429": {"description": "Export budget exhausted"}}
            }
        },
        "/api/admin/audit/cleanup": {
            "post": {
                "tags": ["Audit"],
                "summary": "Delete audit logs past retention",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/CleanupRequest"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/admin/system/metrics": {
            "get": {"tags": ["System"], "summary": "Runtime counters", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "UpdateProfileRequest": {
            "type": "object",
            "required": ["full_name"],
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "DeactivateRequest": {
            "type": "object",
            "required": ["confirmPassword"],
            "properties": {
                "confirmPassword": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "ChangeRoleRequest": {
            "type": "object",
            "required": ["role", "reason"],
            "properties": {
                "role": {"type": "string", "enum": ["VIEWER", "EDITOR", "ADMIN"]},
                "reason": {"type": "string"}
            }
        },
        "CleanupRequest": {
            "type": "object",
            "properties": {
                "retentionDays": {"type": "integer"}
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
                "details": {"type": "object"}
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
