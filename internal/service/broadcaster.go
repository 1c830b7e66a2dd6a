package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToMonitors(testID string, msgType string, payload interface{})
	BroadcastToCandidate(attemptID string, msgType string, payload interface{})
	DisconnectAttempt(attemptID string)
}
