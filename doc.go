// Package rpcsocket implements a persistent, TLS-encrypted, bidirectional
// JSON-RPC 2.0 client connection: a layered resolve/connect/TLS/WebSocket
// pipeline topped by a request/response multiplexer that correlates
// numeric call IDs and gates private methods behind authentication.
package rpcsocket
