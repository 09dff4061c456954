// Package wallet registers the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g internal/auth/http/router.go -o api/wallet
package wallet

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/walletauth"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "service not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/v2/token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Token"],
                "summary": "Token Endpoint",
                "parameters": [
                    {"type": "string", "description": "bearer {jwt} or basic {base64(bundle_id:secret)}", "name": "Authorization", "in": "header", "required": true},
                    {"description": "grant_type, scope and, for client_credentials, username", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "token pair", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "invalid_request, invalid_grant, unauthorized_client, unsupported_grant_type", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "invalid_client", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "409": {"description": "conflict", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "500": {"description": "server_error", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v2/wallet_token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Token"],
                "summary": "Wallet Token Endpoint",
                "parameters": [
                    {"type": "string", "description": "bearer {jwt} or basic {base64(bundle_id:secret)}", "name": "Authorization", "in": "header", "required": true},
                    {"description": "grant nested under token", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.WalletTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "token pair", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}}
                }
            }
        },
        "/v2/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "current user", "schema": {"$ref": "#/definitions/authsdk.MeResponse"}},
                    "401": {"description": "INVALID_TOKEN, EXPIRED_TOKEN, MISSING_CLAIM, UNAUTHORISED", "schema": {"$ref": "#/definitions/authsdk.ResourceError"}}
                }
            }
        },
        "/v2/me/email": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Update email",
                "parameters": [
                    {"description": "new email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.UpdateEmailRequest"}}
                ],
                "responses": {
                    "200": {"description": "updated user", "schema": {"$ref": "#/definitions/authsdk.MeResponse"}},
                    "403": {"description": "FORBIDDEN", "schema": {"$ref": "#/definitions/authsdk.ResourceError"}},
                    "409": {"description": "DUPLICATE_EMAIL", "schema": {"$ref": "#/definitions/authsdk.ResourceError"}},
                    "422": {"description": "INVALID_EMAIL", "schema": {"$ref": "#/definitions/authsdk.ResourceError"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "authsdk.ResourceError": {
            "type": "object",
            "properties": {"error_message": {"type": "string"}, "error_slug": {"type": "string"}}
        },
        "authsdk.TokenRequest": {
            "type": "object",
            "properties": {
                "grant_type": {"type": "string"},
                "username": {"type": "string"},
                "scope": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.WalletTokenRequest": {
            "type": "object",
            "properties": {"token": {"$ref": "#/definitions/authsdk.TokenRequest"}}
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_in": {"type": "integer"},
                "refresh_token": {"type": "string"},
                "scope": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.MeResponse": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "channel": {"type": "string"},
                "email": {"type": "string"},
                "is_tester": {"type": "boolean"},
                "is_trusted_channel": {"type": "boolean"}
            }
        },
        "authsdk.UpdateEmailRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {"database": {"type": "string"}, "keys": {"type": "string"}}
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "service": {"type": "string"},
                "started_at": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"},
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Access token. Format: \"bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "2.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Wallet Authentication Service API",
	Description:      "Issues access and refresh tokens for wallet channels from partner signed JWTs, refresh tokens or channel client credentials.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
