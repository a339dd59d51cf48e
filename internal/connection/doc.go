// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single transport handle of a client
//   - Drives the Idle -> Connecting -> Open -> Reconnecting -> Failed state machine
//   - Retries a lost connection at a fixed interval up to a retry ceiling
//   - Reports exhaustion on Fatal() instead of exiting the process
//   - Hands session events (open, inbound frames) to a Handler
//
// The transport is pluggable through Opener. WebsocketOpener is the production
// implementation built on gorilla/websocket.
package connection
