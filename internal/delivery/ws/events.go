package ws

import "encoding/json"

// Envelope is the frame format in both directions:
// {"event": "...", "data": ...}. Event names live in the domain package;
// they are the wire contract.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// encodeEvent marshals an outbound frame once so a broadcast serializes
// its payload a single time regardless of fanout size.
func encodeEvent(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// sendMessagePayload is the inbound send-message body. Field names mirror
// the client contract; file fields are flattened like the message model.
type sendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	FileURL        string `json:"fileUrl"`
	FileName       string `json:"fileName"`
	FileType       string `json:"fileType"`
	FileMimeType   string `json:"fileMimeType"`
	FileSize       int64  `json:"fileSize"`
}
