// Package docs holds the generated Swagger specification for
// oxenqueue's admin API. It is intentionally hand-authored here rather
// than produced by `swag init`, since this repository does not run
// that generator as part of its build.
package docs

import (
	"github.com/swaggo/swag"
)

var doc = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Reports process and database liveness.",
                "produces": ["application/json"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "ok"}
                }
            }
        },
        "/internal/queue/jobs": {
            "get": {
                "description": "Lists jobs, optionally filtered by job_type and status.",
                "produces": ["application/json"],
                "summary": "List jobs",
                "parameters": [
                    {"type": "string", "name": "jobType", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "ok", "schema": {"$ref": "#/definitions/handlers.ListJobsResponse"}}
                }
            },
            "post": {
                "description": "Enqueues a single job.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Enqueue a job",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.EnqueueRequest"}}
                ],
                "responses": {
                    "200": {"description": "ok", "schema": {"$ref": "#/definitions/handlers.EnqueueResponse"}}
                }
            }
        },
        "/internal/queue/jobs/{id}": {
            "get": {
                "description": "Fetches a single job by id.",
                "produces": ["application/json"],
                "summary": "Get a job",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "ok", "schema": {"$ref": "#/definitions/queue.Job"}},
                    "404": {"description": "not found"}
                }
            },
            "delete": {
                "description": "Deletes a job row, whatever its status.",
                "summary": "Delete a job",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "deleted"}
                }
            }
        },
        "/internal/queue/debug": {
            "get": {
                "description": "Reports inflight/fetching/poll-delay state for every running processor.",
                "produces": ["application/json"],
                "summary": "Debug processor state",
                "responses": {
                    "200": {"description": "ok"}
                }
            }
        }
    },
    "definitions": {
        "handlers.EnqueueRequest": {
            "type": "object",
            "properties": {
                "jobType": {"type": "string"},
                "body": {"type": "object"},
                "priority": {"type": "integer"},
                "uniqueKey": {"type": "integer"}
            }
        },
        "handlers.EnqueueResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "deduplicated": {"type": "boolean"}
            }
        },
        "handlers.ListJobsResponse": {
            "type": "object",
            "properties": {
                "jobs": {"type": "array", "items": {"$ref": "#/definitions/queue.Job"}}
            }
        },
        "queue.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "jobType": {"type": "string"},
                "status": {"type": "string"},
                "body": {"type": "object"},
                "priority": {"type": "integer"},
                "createdTs": {"type": "string"},
                "startedTs": {"type": "string"},
                "batchId": {"type": "integer"},
                "uniqueKey": {"type": "integer"},
                "result": {"type": "string"},
                "recovered": {"type": "boolean"},
                "runningTime": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds the metadata rendered into the template above.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/internal",
	Schemes:          []string{},
	Title:            "oxenqueue Admin API",
	Description:      "Admin and operator API for the oxenqueue job-dispatch engine: enqueue jobs, inspect processor state, and manage job rows.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  doc,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
