package realtime

// Transport is the outbound half of the Transport Bindings (C10): the core
// never touches a socket directly, it only asks Transport to deliver a
// named event to a connection or to drop it. Implemented by the websocket
// hub; emission to a disconnected connection is dropped silently by the
// implementation (§4.7).
type Transport interface {
	SendTo(connectionID string, event string, payload interface{}) error
	Close(connectionID string, reason string)
}
