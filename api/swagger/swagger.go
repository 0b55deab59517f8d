package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Contravention API",
        "description": "Procurement contravention points ledger and escalation tracker",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "ServiceToken": {"type": "apiKey", "name": "X-Service-Token", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Contraventions", "description": "Logged contraventions and their review workflow"},
        {"name": "Contravention Types", "description": "Registry of contravention types and default points"},
        {"name": "Employees", "description": "Employees, point statements and escalation history"},
        {"name": "Escalations", "description": "Escalation records and required actions"},
        {"name": "Training", "description": "Courses, assignments and completion credits"},
        {"name": "Points", "description": "Ledger maintenance"},
        {"name": "Reports", "description": "Read-only reporting"}
    ],
    "paths": {
        "/contraventions": {
            "get": {
                "tags": ["Contraventions"],
                "summary": "List contraventions",
                "parameters": [
                    {"name": "employeeId", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "withdrawn", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Contraventions"],
                "summary": "Log a contravention and add its points",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateContraventionRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Contravention type inactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contraventions/{id}": {
            "get": {
                "tags": ["Contraventions"],
                "summary": "Get a contravention",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Contraventions"],
                "summary": "Withdraw a contravention and reverse its points",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/contraventions/{id}/approve": {
            "post": {"tags": ["Contraventions"], "summary": "Approve a pending contravention", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}}
        },
        "/contraventions/{id}/acknowledge": {
            "post": {"tags": ["Contraventions"], "summary": "Upload the employee acknowledgement", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AcknowledgeContraventionRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}}
        },
        "/contraventions/{id}/dispute": {
            "post": {"tags": ["Contraventions"], "summary": "Dispute a contravention", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DisputeContraventionRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}}
        },
        "/contraventions/{id}/complete-review": {
            "post": {"tags": ["Contraventions"], "summary": "Complete the review of a contravention", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}}
        },
        "/contraventions/{id}/reject": {
            "post": {"tags": ["Contraventions"], "summary": "Reject a contravention with a reason", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectContraventionRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}}
        },
        "/contraventions/{id}/re-edit": {
            "post": {"tags": ["Contraventions"], "summary": "Resubmit a rejected contravention", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReEditContraventionRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}}
        },
        "/contraventions/{id}/points": {
            "patch": {"tags": ["Contraventions"], "summary": "Correct the points of a contravention", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjustPointsRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Withdrawn"}}}
        },
        "/contravention-types": {
            "get": {"tags": ["Contravention Types"], "summary": "List contravention types", "parameters": [{"name": "active", "in": "query", "type": "boolean"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Contravention Types"], "summary": "Register a contravention type", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ContraventionTypeRequest"}}], "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate name"}}}
        },
        "/contravention-types/{name}": {
            "put": {"tags": ["Contravention Types"], "summary": "Update a contravention type", "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ContraventionTypeRequest"}}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/employees": {
            "get": {"tags": ["Employees"], "summary": "List employees", "parameters": [{"name": "department", "in": "query", "type": "string"}, {"name": "search", "in": "query", "type": "string"}, {"name": "active", "in": "query", "type": "boolean"}, {"name": "page", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Employees"], "summary": "Register an employee", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEmployeeRequest"}}], "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate employee number"}}}
        },
        "/employees/{id}/points": {
            "get": {"tags": ["Employees"], "summary": "Point total, tier and history of an employee", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/employees/{id}/escalations": {
            "get": {"tags": ["Employees"], "summary": "Escalation records of an employee", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "open", "in": "query", "type": "boolean"}, {"name": "archived", "in": "query", "type": "boolean"}], "responses": {"200": {"description": "OK"}}}
        },
        "/employees/{id}/training": {
            "get": {"tags": ["Training"], "summary": "Training assignments of an employee", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/escalations": {
            "get": {"tags": ["Escalations"], "summary": "List escalation records", "responses": {"200": {"description": "OK"}}}
        },
        "/escalations/{id}/complete-action": {
            "patch": {"tags": ["Escalations"], "summary": "Mark a required action complete", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteActionRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Archived"}, "422": {"description": "Unknown action"}}}
        },
        "/escalations/recalculate": {
            "post": {"tags": ["Escalations"], "summary": "Rebuild totals and records from point history", "responses": {"200": {"description": "OK"}}}
        },
        "/training/courses": {
            "get": {"tags": ["Training"], "summary": "List training courses", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Training"], "summary": "Register a training course", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/training/assign": {
            "post": {"tags": ["Training"], "summary": "Assign a course to an employee", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignTrainingRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/training/assignments/{id}/complete": {
            "post": {"tags": ["Training"], "summary": "Complete an assignment and credit its points once", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/training/completions": {
            "post": {"tags": ["Training"], "summary": "Completion callback from the training provider", "security": [{"ServiceToken": []}], "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrainingCompletedRequest"}}], "responses": {"200": {"description": "OK"}, "401": {"description": "Bad service token"}}}
        },
        "/points/fiscal-reset": {
            "post": {"tags": ["Points"], "summary": "Zero totals accrued before the current fiscal year", "parameters": [{"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/FiscalResetRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/reports/standings": {
            "get": {"tags": ["Reports"], "summary": "Employee point standings", "parameters": [{"name": "department", "in": "query", "type": "string"}, {"name": "minPoints", "in": "query", "type": "integer"}, {"name": "tiered", "in": "query", "type": "boolean"}], "responses": {"200": {"description": "OK"}}}
        },
        "/health": {
            "get": {"summary": "Liveness check", "security": [], "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"summary": "Readiness check", "security": [], "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}}
        }
    },
    "definitions": {
        "CreateContraventionRequest": {
            "type": "object",
            "required": ["employeeId", "type", "incidentDate", "description"],
            "properties": {
                "employeeId": {"type": "string"},
                "type": {"type": "string"},
                "incidentDate": {"type": "string", "format": "date-time"},
                "description": {"type": "string"},
                "attachmentRef": {"type": "string"}
            }
        },
        "AcknowledgeContraventionRequest": {
            "type": "object",
            "required": ["attachmentRef"],
            "properties": {"attachmentRef": {"type": "string"}}
        },
        "DisputeContraventionRequest": {
            "type": "object",
            "required": ["note"],
            "properties": {"note": {"type": "string"}}
        },
        "RejectContraventionRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {"reason": {"type": "string"}}
        },
        "ReEditContraventionRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "incidentDate": {"type": "string", "format": "date-time"},
                "description": {"type": "string"}
            }
        },
        "AdjustPointsRequest": {
            "type": "object",
            "required": ["points", "reason"],
            "properties": {
                "points": {"type": "integer", "minimum": 0},
                "reason": {"type": "string"}
            }
        },
        "ContraventionTypeRequest": {
            "type": "object",
            "required": ["name", "category"],
            "properties": {
                "name": {"type": "string"},
                "category": {"type": "string", "enum": ["PURCHASING", "APPROVAL", "DOCUMENTATION", "VENDOR", "CONDUCT", "OTHER"]},
                "defaultPoints": {"type": "integer", "minimum": 0},
                "active": {"type": "boolean"},
                "description": {"type": "string"}
            }
        },
        "CreateEmployeeRequest": {
            "type": "object",
            "required": ["employeeNumber", "fullName"],
            "properties": {
                "employeeNumber": {"type": "string"},
                "fullName": {"type": "string"},
                "email": {"type": "string", "format": "email"},
                "department": {"type": "string"},
                "managerId": {"type": "string"}
            }
        },
        "CompleteActionRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {"action": {"type": "string"}}
        },
        "CreateCourseRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "pointCredit": {"type": "integer", "minimum": 0}
            }
        },
        "AssignTrainingRequest": {
            "type": "object",
            "required": ["employeeId", "courseId"],
            "properties": {
                "employeeId": {"type": "string"},
                "courseId": {"type": "string"},
                "escalationId": {"type": "string"},
                "dueDate": {"type": "string", "format": "date-time"}
            }
        },
        "TrainingCompletedRequest": {
            "type": "object",
            "required": ["employeeId", "courseId"],
            "properties": {
                "employeeId": {"type": "string"},
                "courseId": {"type": "string"}
            }
        },
        "FiscalResetRequest": {
            "type": "object",
            "properties": {"at": {"type": "string", "format": "date-time"}}
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
