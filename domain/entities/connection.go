package entities

// ConnectionState represents the state of the server connection
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
)

// CanSend reports whether messages go straight to the wire
func (s ConnectionState) CanSend() bool {
	return s == ConnectionConnected
}
