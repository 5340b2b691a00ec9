package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "College Scheduling API",
        "description": "Class scheduling for departments, rooms, sections and faculty with conflict detection and timetable exports.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login and token lifecycle"},
        {"name": "Schedules", "description": "Schedule entries, conflict checks and grids"},
        {"name": "Exports", "description": "Asynchronous PDF, Excel and CSV timetables"},
        {"name": "Notifications", "description": "Faculty email notifications"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for tokens",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedule entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "semester_id", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string", "description": "0-6 (Monday = 0) or a day name"},
                    {"name": "faculty_id", "in": "query", "type": "string"},
                    {"name": "room_id", "in": "query", "type": "string"},
                    {"name": "section_id", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid interval or payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Faculty or room conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Update schedule entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Faculty or room conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete schedule entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/schedules/check": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Dry-run conflict check",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "exclude_id", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ConflictReport"}}
                }
            }
        },
        "/schedules/bulk": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Create several schedule entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "207": {"description": "Partially created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/grid": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Timetable grid",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "semester_id", "in": "query", "required": true, "type": "string"},
                    {"name": "mode", "in": "query", "type": "string", "enum": ["room", "faculty", "section"]},
                    {"name": "day", "in": "query", "type": "string"},
                    {"name": "column_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a timetable export",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ExportJob"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ExportJob"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export through its signed link",
                "produces": ["application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired link"},
                    "404": {"description": "Export file expired"},
                    "409": {"description": "Export not ready"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "faculty_id", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/faculty/{id}/digest": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Send the weekly timetable digest now",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Faculty not found or no active semester"}
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
            },
            "required": ["email", "password"]
        },
        "ScheduleRequest": {
            "type": "object",
            "properties": {
                "semester_id": {"type": "string"},
                "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:30"},
                "faculty_id": {"type": "string"},
                "room_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "class_section_id": {"type": "string"},
                "active": {"type": "boolean"}
            },
            "required": ["semester_id", "day_of_week", "start_time", "end_time", "faculty_id", "room_id", "subject_id", "class_section_id"]
        },
        "BulkScheduleRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/ScheduleRequest"}},
                "partial_on_error": {"type": "boolean"}
            },
            "required": ["items"]
        },
        "ScheduleConflict": {
            "type": "object",
            "properties": {
                "schedule_id": {"type": "string"},
                "dimension": {"type": "string", "enum": ["faculty", "room"]},
                "resource_id": {"type": "string"},
                "day_of_week": {"type": "integer"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            }
        },
        "ConflictReport": {
            "type": "object",
            "properties": {
                "valid": {"type": "boolean"},
                "interval": {"type": "string"},
                "faculty_conflicts": {"type": "array", "items": {"$ref": "#/definitions/ScheduleConflict"}},
                "room_conflicts": {"type": "array", "items": {"$ref": "#/definitions/ScheduleConflict"}}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "semester_id": {"type": "string"},
                "mode": {"type": "string", "enum": ["room", "faculty", "section"]},
                "format": {"type": "string", "enum": ["pdf", "xlsx", "csv"]},
                "day": {"type": "integer"},
                "column_id": {"type": "string"}
            },
            "required": ["semester_id", "format"]
        },
        "ExportJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED", "EXPIRED"]},
                "progress": {"type": "integer"},
                "result_url": {"type": "string"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "error_message": {"type": "string"}
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
