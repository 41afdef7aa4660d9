package types

import "time"

// FileRecord describes a file whose bytes are fully persisted in the store.
// A record exists if and only if its content was completely written and
// committed; Size is the number of bytes actually read from the upload
// stream, never a declared value. Records are never mutated after commit.
type FileRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Path string `json:"-"`
}

// DeviceInfo describes a device connected over a real-time session.
// LastSeen is in UTC and only ever moves forward while the session lives.
type DeviceInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
}

// Response is the standard JSON envelope for HTTP API responses.
type Response struct {
	Code    int         `json:"code"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success builds a success envelope with optional payload data.
func Success(message string, data interface{}) Response {
	return Response{
		Code:    0,
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

// Error builds an error envelope.
func Error(message string) Response {
	return Response{
		Code:    1,
		Status:  "error",
		Message: message,
	}
}
