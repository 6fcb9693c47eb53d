package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is read.
const maxErrorBody = 64 << 10

// errorBody covers the error shapes the backend produces: a string detail,
// a list of validation issues under detail, or the envelope fields.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type validationIssue struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

// serverMessage extracts a human readable message from an error body, in
// order of preference: detail, error, message. It returns "" when the body
// carries none of them.
func serverMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if d := detailText(eb.Detail); d != "" {
		return d
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var issues []validationIssue
	if err := json.Unmarshal(raw, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, is := range issues {
			if is.Msg == "" {
				continue
			}
			if len(is.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", is.Loc[len(is.Loc)-1], is.Msg))
			} else {
				msgs = append(msgs, is.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// readServerMessage drains a non-2xx response and returns the server's
// message, or "" when the body carries none.
func readServerMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}
	return serverMessage(body)
}

// decodeEnvelope decodes a 2xx response body into an Envelope.
func decodeEnvelope[T any](resp *http.Response) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, fmt.Errorf("unexpected response body (status code = %d): %w", resp.StatusCode, err)
	}
	return env, nil
}
