// docs/docs.go
// Package docs registers the OpenAPI description of the simulator API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{.Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/nic/mode": {
            "get": {
                "description": "Returns a snapshot of the Simple Network mode structure",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Get interface mode",
                "responses": {
                    "200": {"description": "Mode retrieved successfully", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Boot services exited or interface not initialized", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/stats": {
            "get": {
                "description": "Collects the interface counters; counters the firmware does not support are null",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Get interface statistics",
                "responses": {
                    "200": {"description": "Statistics retrieved successfully", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "delete": {
                "description": "Zeroes the interface counters",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Reset interface statistics",
                "responses": {
                    "200": {"description": "Statistics reset", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/status": {
            "get": {
                "description": "Polls the interrupt status and the recycled transmit buffer",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Get interrupt status",
                "responses": {
                    "200": {"description": "Status retrieved successfully", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/start": {
            "post": {
                "description": "Moves the interface from Stopped to Started",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Start interface",
                "responses": {
                    "200": {"description": "Interface start completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/stop": {
            "post": {
                "description": "Moves the interface from Started to Stopped",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Stop interface",
                "responses": {
                    "200": {"description": "Interface stop completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/initialize": {
            "post": {
                "description": "Allocates transmit and receive buffers and moves the interface to Initialized",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Initialize interface",
                "parameters": [
                    {"description": "Extra buffer sizes", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/model.InitializeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Interface initialize completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/reset": {
            "post": {
                "description": "Resets the network adapter",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Reset interface",
                "parameters": [
                    {"description": "Reset options", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/model.ResetRequest"}}
                ],
                "responses": {
                    "200": {"description": "Interface reset completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/shutdown": {
            "post": {
                "description": "Moves the interface from Initialized to Started",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Shut down interface",
                "responses": {
                    "200": {"description": "Interface shutdown completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/filters": {
            "put": {
                "description": "Enables or disables receive filters and replaces the multicast filter list",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Set receive filters",
                "parameters": [
                    {"description": "Filter change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.FilterRequest"}}
                ],
                "responses": {
                    "200": {"description": "Receive filters updated", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/station-address": {
            "put": {
                "description": "Changes the current station address or resets it to the permanent address",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Set station address",
                "parameters": [
                    {"description": "Station address change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.StationAddressRequest"}}
                ],
                "responses": {
                    "200": {"description": "Station address updated", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/mcast-mac": {
            "post": {
                "description": "Maps a multicast IPv4 or IPv6 address to a hardware address",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Map multicast address",
                "parameters": [
                    {"description": "Multicast IP address", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.McastRequest"}}
                ],
                "responses": {
                    "200": {"description": "Multicast address mapped", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/nvram": {
            "get": {
                "description": "Reads length bytes of NVRAM starting at offset",
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Read NVRAM",
                "parameters": [
                    {"type": "integer", "default": 0, "description": "Byte offset", "name": "offset", "in": "query"},
                    {"type": "integer", "description": "Number of bytes", "name": "length", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "NVRAM read", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "put": {
                "description": "Writes data to NVRAM starting at offset",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Write NVRAM",
                "parameters": [
                    {"description": "NVRAM write", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.NVDataRequest"}}
                ],
                "responses": {
                    "200": {"description": "NVRAM written", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/transmit": {
            "post": {
                "description": "Queues a frame for transmission; with a header size the firmware fills in the media header",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Transmit frame",
                "parameters": [
                    {"description": "Frame to transmit", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.TransmitRequest"}}
                ],
                "responses": {
                    "202": {"description": "Frame queued", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Transmit queue full", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/receive": {
            "post": {
                "description": "Reads one frame from the receive queue",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Receive frame",
                "parameters": [
                    {"description": "Receive buffer size", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/model.ReceiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "Frame received", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/nic/inject": {
            "post": {
                "description": "Delivers a frame from the emulated wire to the receive queue",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["NIC"],
                "summary": "Inject frame",
                "parameters": [
                    {"description": "Raw frame", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.InjectRequest"}}
                ],
                "responses": {
                    "202": {"description": "Frame injected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Interface not running", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/firmware": {
            "get": {
                "description": "Returns the phase, console transcript, call counts and contract violations",
                "produces": ["application/json"],
                "tags": ["Firmware"],
                "summary": "Get firmware state",
                "responses": {
                    "200": {"description": "Firmware state retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/firmware/exit": {
            "post": {
                "description": "Runs the exit hooks and ends the boot phase; succeeds only once",
                "produces": ["application/json"],
                "tags": ["Firmware"],
                "summary": "Exit boot services",
                "responses": {
                    "200": {"description": "Boot services exited", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Boot services exited or exit in progress", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Firmware returned an error status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "string"},
                "efi_status": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "model.InitializeRequest": {
            "type": "object",
            "properties": {
                "extra_rx_buffer_size": {"type": "integer"},
                "extra_tx_buffer_size": {"type": "integer"}
            }
        },
        "model.ResetRequest": {
            "type": "object",
            "properties": {
                "extended_verification": {"type": "boolean"}
            }
        },
        "model.FilterRequest": {
            "type": "object",
            "properties": {
                "enable": {"type": "array", "items": {"type": "string"}},
                "disable": {"type": "array", "items": {"type": "string"}},
                "reset_mcast": {"type": "boolean"},
                "mcast": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.StationAddressRequest": {
            "type": "object",
            "properties": {
                "reset": {"type": "boolean"},
                "address": {"type": "string"}
            }
        },
        "model.McastRequest": {
            "type": "object",
            "required": ["ip"],
            "properties": {
                "ip": {"type": "string"}
            }
        },
        "model.NVDataRequest": {
            "type": "object",
            "required": ["data"],
            "properties": {
                "offset": {"type": "integer"},
                "data": {"type": "string", "format": "byte"}
            }
        },
        "model.TransmitRequest": {
            "type": "object",
            "required": ["payload"],
            "properties": {
                "header_size": {"type": "integer"},
                "source": {"type": "string"},
                "destination": {"type": "string"},
                "protocol": {"type": "integer"},
                "payload": {"type": "string", "format": "byte"}
            }
        },
        "model.ReceiveRequest": {
            "type": "object",
            "properties": {
                "buffer_size": {"type": "integer"}
            }
        },
        "model.InjectRequest": {
            "type": "object",
            "required": ["frame"],
            "properties": {
                "frame": {"type": "string", "format": "byte"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8086",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "EFI Simple Network Simulator API",
	Description:      "Emulated UEFI firmware with a Simple Network Protocol interface, driven through the efi-access bindings",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
