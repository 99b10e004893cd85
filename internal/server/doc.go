// Package server is the local browser bridge behind "noisepanel serve".
//
// It exposes one panel engine over HTTP:
//
//	GET /api/snapshot   current panel snapshot as JSON
//	GET /ws             websocket: snapshots out, intents in
//	GET /metrics        Prometheus metrics
//	GET /healthz        liveness check
//
// # WebSocket Protocol
//
// After the upgrade the server sends the current snapshot, then a new one
// after every engine state change. Slow browsers skip intermediate
// snapshots but always receive the latest.
//
// The browser sends intents as JSON objects:
//
//	{"id":"7","type":"edit","field":"vol","value":"18"}
//	{"type":"save","group":"thresholds"}
//	{"type":"select","ssid":"HomeNet","password":"..."}
//	{"type":"login","email":"ops@example.com","password":"..."}
//	{"type":"play","track":2}
//
// Every intent is answered with a result message carrying its id:
//
//	{"type":"result","id":"7","intent":"edit","ok":true}
//
// Passwords are redacted before intents are logged.
package server
