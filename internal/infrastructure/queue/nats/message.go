package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ingestRequest struct {
	Filename   string    `json:"filename"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func encodeRequest(req ingestRequest) ([]byte, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("ingest request without filename")
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest request: %w", err)
	}
	return raw, nil
}

// decodeRequest also accepts a bare filename, the format used by shell
// publishers such as `nats pub`.
func decodeRequest(raw []byte) (ingestRequest, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ingestRequest{}, fmt.Errorf("empty ingest request")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return ingestRequest{Filename: trimmed}, nil
	}
	var req ingestRequest
	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return ingestRequest{}, fmt.Errorf("decode ingest request: %w", err)
	}
	if strings.TrimSpace(req.Filename) == "" {
		return ingestRequest{}, fmt.Errorf("ingest request without filename")
	}
	return req, nil
}
