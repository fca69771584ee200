// services/emitter.go - Outbound event sink
package services

// Emitter is the outbound side of the event layer. The websocket hub
// implements it; timers and the cleanup sweep emit through it so they never
// touch the transport directly.
type Emitter interface {
	// ToRoom broadcasts an event to every live connection in the room.
	ToRoom(pin, event string, data interface{})
	// ToConnection sends an event to a single connection.
	ToConnection(connectionID, event string, data interface{})
}

// NopEmitter discards all events. Used in tests and before the hub is wired.
type NopEmitter struct{}

func (NopEmitter) ToRoom(string, string, interface{})       {}
func (NopEmitter) ToConnection(string, string, interface{}) {}
