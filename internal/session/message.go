package session

import (
	"encoding/json"
	"time"

	"github.com/lanbeam/lanbeam/pkg/types"
)

// Message type discriminators for the session wire protocol.
const (
	TypeDeviceDiscovery  = "device_discovery"
	TypeDeviceList       = "device_list"
	TypeTransferInit     = "transfer_init"
	TypeTransferAccept   = "transfer_accept"
	TypeTransferReject   = "transfer_reject"
	TypeTransferProgress = "transfer_progress"
	TypeTransferComplete = "transfer_complete"
	TypeError            = "error"
)

// Envelope is the tagged JSON frame read off a session. Payload is
// decoded per-type once the discriminator is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound is an envelope with a concrete payload, ready to marshal.
type Outbound struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// DeviceListPayload carries the live roster pushed to a peer. Timestamps
// marshal as RFC 3339 UTC.
type DeviceListPayload struct {
	Devices   []types.DeviceInfo `json:"devices"`
	Timestamp time.Time          `json:"timestamp"`
}

// TransferPayload carries transfer lifecycle notices between peers. The
// server relays these verbatim; it does not orchestrate transfers.
type TransferPayload struct {
	FileID    string    `json:"file_id,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	Size      int64     `json:"size,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a protocol error to the peer.
type ErrorPayload struct {
	Message string `json:"message"`
}
