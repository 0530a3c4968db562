// Package stream implements the consumer-side feed client.
//
// A Controller maintains a live view of the ticker snapshot by driving a
// push transport (SSE or WebSocket) through a connect, reconnect-with-backoff
// and poll-fallback lifecycle. When the push stream cannot be established
// within the retry ceiling the controller degrades to periodic pulls of the
// snapshot endpoint and keeps attempting to upgrade back to push.
package stream
