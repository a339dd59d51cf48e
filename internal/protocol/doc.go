// Package protocol defines the envelope wire format shared by clients and the hub.
//
// Every frame is a binary websocket message holding UTF-8 JSON text of a
// two-element array:
//
//	[type, payload]
//
// The type is a small integer tag. Tags 0, 1 and 2 are reserved:
//   - 0: log event, payload is ["<name>:", values...]
//   - 1: error event, payload is ["<name>: <ERROR>", values...]
//   - 2: identification, payload is the client name
//
// Everything above 2 is application-defined.
package protocol
