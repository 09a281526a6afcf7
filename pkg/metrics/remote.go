package metrics

import "time"

// RemoteMetrics observes HTTP calls made to the FileSystem and FileHandler
// services.
type RemoteMetrics interface {
	// ObserveCall records one remote call.
	//
	// Parameters:
	//   - service: "filesystem" or "filehandler"
	//   - operation: remote operation name (e.g., "get_inode", "upload")
	//   - outcome: "ok", "rejected" or "transport_error"
	//   - duration: time until the response headers arrived
	ObserveCall(service, operation, outcome string, duration time.Duration)
}

// NewNoopRemoteMetrics returns a RemoteMetrics that discards everything.
func NewNoopRemoteMetrics() RemoteMetrics {
	return noopRemoteMetrics{}
}

type noopRemoteMetrics struct{}

func (noopRemoteMetrics) ObserveCall(service, operation, outcome string, duration time.Duration) {}
