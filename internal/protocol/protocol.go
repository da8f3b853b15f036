// Package protocol defines the JSON messages exchanged with external
// collaborators (renderer, GUI, input shell) over the websocket
// transport. Every message carries type and protocol_version so
// unknown frames can be routed or rejected before full decoding.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeIntent  = "INTENT"
	TypeResult  = "RESULT"
	TypeQuery   = "QUERY"
	TypeUnits   = "UNITS"
	TypeRecords = "RECORDS"
	TypeInfo    = "INFO"
	TypeData    = "DATA"
	TypeError   = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
