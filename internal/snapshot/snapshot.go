// Package snapshot defines the read-only view of plant state shared by
// the dashboard HTTP/websocket handlers and the interactive console.
package snapshot

import (
	"github.com/tunnelhill/wtprtu/internal/control"
	"github.com/tunnelhill/wtprtu/internal/process"
)

// Snapshot combines the latest sensor vector, the latest control
// result, and the generator's simulation-level state.
type Snapshot struct {
	Sensors process.Sensors
	Result  control.Result
	Sim     process.StateSummary
}
