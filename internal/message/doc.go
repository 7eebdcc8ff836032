// Package message encodes and decodes the agent's wire payloads.
//
// Three payload kinds share the JSON wire format:
//
//	control (inbound):   {"pin": 15, "state": true} or {"command": "getStatus"}
//	status (outbound):   {"pins": [...], "deviceId": ..., "ipAddress": ..., "rssi": ...}
//	telemetry (outbound): {"deviceId": ..., "temperature": ..., "humidity": ...,
//	                       "freeHeap": ..., "uptime": ...}
//
// Control decoding checks the pin/state pair and the command field
// independently; both actions fire for a payload satisfying both patterns.
// Field types are strict: no string-to-number or truthy-string coercion.
//
// The outbound field sets and their ordering are frozen for wire
// compatibility with consumers of the original firmware.
package message
