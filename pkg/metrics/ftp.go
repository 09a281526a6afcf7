package metrics

import "time"

// FTPMetrics provides observability for FTP adapter operations.
//
// Implementations collect command outcomes, transfer throughput, connection
// lifecycle and login results. The FTP adapter uses a no-op implementation
// when none is supplied.
type FTPMetrics interface {
	// RecordOperation records a completed filesystem operation.
	//
	// Parameters:
	//   - operation: adapter operation name (e.g., "stat", "list", "put")
	//   - duration: time taken by the operation, remote calls included
	//   - errorCode: empty on success, otherwise the classified error code
	RecordOperation(operation string, duration time.Duration, errorCode string)

	// RecordBytesTransferred records payload bytes moved over a data connection.
	//
	// Parameters:
	//   - direction: "download" or "upload"
	//   - bytes: number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// RecordAuthentication records a login attempt and its outcome.
	RecordAuthentication(success bool)

	// SetActiveConnections updates the current control connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionRejected increments the counter of connections refused
	// because the connection limit was reached.
	RecordConnectionRejected()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()
}

// NewNoopFTPMetrics returns an FTPMetrics that discards everything.
func NewNoopFTPMetrics() FTPMetrics {
	return noopFTPMetrics{}
}

type noopFTPMetrics struct{}

func (noopFTPMetrics) RecordOperation(operation string, duration time.Duration, errorCode string) {}
func (noopFTPMetrics) RecordBytesTransferred(direction string, bytes int64)                        {}
func (noopFTPMetrics) RecordAuthentication(success bool)                                           {}
func (noopFTPMetrics) SetActiveConnections(count int32)                                            {}
func (noopFTPMetrics) RecordConnectionAccepted()                                                   {}
func (noopFTPMetrics) RecordConnectionRejected()                                                   {}
func (noopFTPMetrics) RecordConnectionClosed()                                                     {}
