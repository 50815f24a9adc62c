package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/resilience"
)

type statusError struct {
	operation  string
	statusCode int
	status     string
	body       string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.statusCode == http.StatusNotFound
}

func classifyQdrantError(err error) resilience.Outcome {
	var se *statusError
	if errors.As(err, &se) {
		if se.statusCode >= 500 || se.statusCode == http.StatusTooManyRequests {
			return resilience.Outcome{Retry: true, CountsAsFailure: true}
		}
		return resilience.Outcome{}
	}
	return resilience.ClassifyTransient(err)
}

// doJSON sends payload (if any) and decodes the response into out (if any).
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	return c.exec.Execute(ctx, "qdrant_"+operation, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, payload, out, operation)
	}, classifyQdrantError)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		se := &statusError{
			operation:  operation,
			statusCode: resp.StatusCode,
			status:     resp.Status,
			body:       strings.TrimSpace(string(raw)),
		}
		if se.statusCode >= 500 {
			return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, se)
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func isConflict(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.statusCode == http.StatusConflict
}
