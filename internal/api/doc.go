// Package api serves the bridge over HTTP: the JSON API, the telemetry
// event stream, the websocket used by the browser remote, Prometheus
// metrics and the remote page itself.
//
// Every camera-changing request is queued on the remote.Bridge so HTTP
// clients and remote sessions never talk to the camera concurrently.
package api
