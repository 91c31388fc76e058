package waflow

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SendResult is the single normalized outcome of a webhook call.
type SendResult struct {
	OK        bool
	MessageID string
	Message   string
	// Ambiguous marks a 2xx response whose body matched no known shape.
	// The message probably went out, but the upstream gave no usable signal.
	Ambiguous bool
}

// adapter tries to interpret one known upstream response shape.
// Returns false when the body does not match the shape.
type adapter func(statusCode int, body []byte) (SendResult, bool)

// adapters are tried in order; the first match wins. Each corresponds to a
// response shape the automation service has been observed to produce.
var adapters []adapter

func init() {
	adapters = []adapter{
		parseSuccessFlag,
		parseStatusString,
		parseSentID,
		parseErrorEnvelope,
		parseArrayWrapped,
	}
}

// ParseResponse normalizes any upstream response into a SendResult. It never
// fails: unrecognized bodies degrade to an ambiguous success on 2xx and a
// generic failure otherwise.
func ParseResponse(statusCode int, body []byte) SendResult {
	trimmed := []byte(strings.TrimSpace(string(body)))
	for _, try := range adapters {
		if result, ok := try(statusCode, trimmed); ok {
			return result
		}
	}
	return parseFallback(statusCode, trimmed)
}

// Shape: {"success": true/false, "message": "...", "message_id"/"id": "..."}
func parseSuccessFlag(_ int, body []byte) (SendResult, bool) {
	var payload struct {
		Success   *bool  `json:"success"`
		Message   string `json:"message"`
		MessageID string `json:"message_id"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Success == nil {
		return SendResult{}, false
	}
	return SendResult{
		OK:        *payload.Success,
		MessageID: firstNonEmpty(payload.MessageID, payload.ID),
		Message:   payload.Message,
	}, true
}

// Shape: {"status": "success"|"ok"|"sent"|"error"|"failed", "msg"/"message": "..."}
func parseStatusString(_ int, body []byte) (SendResult, bool) {
	var payload struct {
		Status    string `json:"status"`
		Message   string `json:"message"`
		Msg       string `json:"msg"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Status == "" {
		return SendResult{}, false
	}
	msg := firstNonEmpty(payload.Message, payload.Msg)
	switch strings.ToLower(payload.Status) {
	case "success", "ok", "sent", "queued":
		return SendResult{OK: true, MessageID: payload.MessageID, Message: msg}, true
	case "error", "failed", "failure":
		return SendResult{OK: false, MessageID: payload.MessageID, Message: msg}, true
	}
	return SendResult{}, false
}

// Shape: {"sent": true, "id": "..."}
func parseSentID(_ int, body []byte) (SendResult, bool) {
	var payload struct {
		Sent *bool  `json:"sent"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Sent == nil {
		return SendResult{}, false
	}
	return SendResult{OK: *payload.Sent, MessageID: payload.ID}, true
}

// Shape: {"error": "..."} or {"error": {"message": "..."}}
func parseErrorEnvelope(_ int, body []byte) (SendResult, bool) {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 || string(payload.Error) == "null" {
		return SendResult{}, false
	}

	var msg string
	if err := json.Unmarshal(payload.Error, &msg); err != nil {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err != nil {
			return SendResult{}, false
		}
		msg = nested.Message
	}
	return SendResult{OK: false, Message: msg}, true
}

// Shape: [ {...} ] — some flows wrap their single result in an array.
func parseArrayWrapped(statusCode int, body []byte) (SendResult, bool) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil || len(elements) == 0 {
		return SendResult{}, false
	}
	for _, try := range adapters[:len(adapters)-1] {
		if result, ok := try(statusCode, elements[0]); ok {
			return result, true
		}
	}
	return SendResult{}, false
}

// Fallback: non-JSON or unrecognized JSON. A 2xx is treated as an ambiguous
// success; anything else is a failure carrying whatever the body said.
func parseFallback(statusCode int, body []byte) SendResult {
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return SendResult{OK: true, Ambiguous: true, Message: msg}
	}
	return SendResult{OK: false, Message: msg}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
