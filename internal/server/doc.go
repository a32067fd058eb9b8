// Package server exposes the daemon over HTTP.
//
// Every WebSocket connection on /ws becomes a broadcast observer and receives
// the full event stream. Clients may send {"type":"ping"} (answered with
// pong) and {"type":"status"} (answered with the backend readiness flag);
// anything else gets an error message. A connection whose write fails is
// dropped by the hub and closed.
//
// REST endpoints submit tasks and read status, history and recent logs.
package server
