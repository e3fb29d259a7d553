package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Classroom Snapshot API",
        "description": "Validates, previews and imports classroom snapshots into tenant-scoped storage.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Snapshots", "description": "Snapshot validation, diff, import and history"},
        {"name": "Submissions", "description": "Stored submission versions and grades"},
        {"name": "Operations", "description": "Health and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["Operations"], "summary": "Liveness check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"tags": ["Operations"], "summary": "Readiness of postgres and redis", "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}}
        },
        "/metrics": {
            "get": {"tags": ["Operations"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "Metrics"}}}
        },
        "/api/v1/metrics/summary": {
            "get": {"tags": ["Operations"], "summary": "Request and import counters", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/api/v1/snapshots/validate": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Validate a classroom snapshot",
                "description": "Invalid snapshots return 200 with isValid=false and path-addressed issues.",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "snapshot", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Snapshot"}}],
                "responses": {
                    "200": {"description": "Validation result", "schema": {"$ref": "#/definitions/ValidationResult"}},
                    "400": {"description": "Not a parseable snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Snapshot too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/snapshots/diff": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Preview an import",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "snapshot", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Snapshot"}}],
                "responses": {
                    "200": {"description": "Diff", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Not a parseable snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Snapshot failed validation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/snapshots/import": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Import a classroom snapshot",
                "description": "One transaction per classroom. Partial and total write failures return 200 with failures listed.",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "snapshot", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Snapshot"}}],
                "responses": {
                    "200": {"description": "Import result", "schema": {"$ref": "#/definitions/ImportResult"}},
                    "400": {"description": "Not a parseable snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another import is running for this teacher", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Snapshot failed validation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/snapshots/history": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "List imports, newest first",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["success", "partial", "failure"]}
                ],
                "responses": {"200": {"description": "History", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/snapshots/history/export": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "Export import history",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "Report file"}, "400": {"description": "Unknown format"}}
            }
        },
        "/api/v1/snapshots/history/{id}": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "Get one import record",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Import record", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "404": {"description": "Not found"}}
            }
        },
        "/api/v1/snapshots/history/{id}/snapshot": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "Download the archived snapshot of an import",
                "produces": ["application/json"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Snapshot file"}, "404": {"description": "Not archived"}}
            }
        },
        "/api/v1/submissions/{id}/versions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List every version of a submission with its grade",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Versions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "404": {"description": "Not found"}}
            }
        },
        "/api/v1/submissions/{id}/grade": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get the grade of a submission version",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Grade", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "404": {"description": "Not found"}}
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Grade the latest version of a submission",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "grade", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Grade recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "409": {"description": "Submission is not the latest version"}
                }
            }
        }
    },
    "definitions": {
        "Snapshot": {
            "type": "object",
            "required": ["teacher", "classrooms", "metadata"],
            "properties": {
                "teacher": {"type": "object", "properties": {"email": {"type": "string"}, "name": {"type": "string"}}},
                "classrooms": {"type": "array", "items": {"type": "object"}},
                "metadata": {"type": "object", "properties": {
                    "fetchedAt": {"type": "string", "format": "date-time"},
                    "expiresAt": {"type": "string", "format": "date-time"},
                    "source": {"type": "string"},
                    "version": {"type": "string"}
                }}
            }
        },
        "ValidationIssue": {
            "type": "object",
            "properties": {"path": {"type": "string"}, "message": {"type": "string"}}
        },
        "ValidationResult": {
            "type": "object",
            "properties": {
                "isValid": {"type": "boolean"},
                "stats": {"type": "object"},
                "preview": {"type": "object"},
                "issues": {"type": "array", "items": {"$ref": "#/definitions/ValidationIssue"}}
            }
        },
        "ImportStats": {
            "type": "object",
            "properties": {
                "classroomsCreated": {"type": "integer"},
                "classroomsUpdated": {"type": "integer"},
                "assignmentsCreated": {"type": "integer"},
                "assignmentsUpdated": {"type": "integer"},
                "submissionsCreated": {"type": "integer"},
                "submissionsVersioned": {"type": "integer"},
                "submissionsUnchanged": {"type": "integer"},
                "gradesPreserved": {"type": "integer"},
                "gradesCreated": {"type": "integer"},
                "gradesOrphaned": {"type": "integer"},
                "enrollmentsCreated": {"type": "integer"},
                "enrollmentsUpdated": {"type": "integer"},
                "enrollmentsArchived": {"type": "integer"},
                "skipped": {"type": "integer"}
            }
        },
        "ImportResult": {
            "type": "object",
            "properties": {
                "snapshotId": {"type": "string"},
                "status": {"type": "string", "enum": ["success", "partial", "failure"]},
                "isFirstImport": {"type": "boolean"},
                "stats": {"$ref": "#/definitions/ImportStats"},
                "processingTime": {"type": "integer"},
                "summary": {"type": "string"},
                "failures": {"type": "array", "items": {"type": "object"}},
                "skipped": {"type": "array", "items": {"type": "object"}}
            }
        },
        "RecordGradeRequest": {
            "type": "object",
            "required": ["score", "maxScore"],
            "properties": {
                "score": {"type": "number"},
                "maxScore": {"type": "number"},
                "feedback": {"type": "string"},
                "gradedBy": {"type": "string", "enum": ["manual", "ai", "auto"]}
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
                "status": {"type": "integer"},
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
