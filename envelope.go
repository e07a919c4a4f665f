package sambung

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/ambiyansyah-risyal/sambung/internal/canonjson"
)

// identityField is the payload key the auth-injection middleware fills in
// when the caller did not supply one.
const identityField = "identity"

// MarshalBody encodes the envelope as the wire JSON object: the operation
// name flattened next to the payload fields, plus the injected identity when
// present and not already supplied by the caller.
func (e *Envelope) MarshalBody() ([]byte, error) {
	body := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		body[k] = v
	}
	body["operation"] = e.Operation
	if e.AuthIdentity != "" {
		if _, supplied := e.Payload[identityField]; !supplied {
			body[identityField] = e.AuthIdentity
		}
	}
	return json.Marshal(body)
}

// DefaultKeyFunc derives the deterministic call key: the operation name in
// the clear (so invalidation predicates can match on it) joined with an FNV
// hash of the canonical payload encoding. Payload key order does not affect
// the key.
func DefaultKeyFunc(operation string, payload Payload) (string, error) {
	if len(payload) == 0 {
		return operation, nil
	}

	canonical, err := canonjson.Marshal(payload)
	if err != nil {
		return "", err
	}

	h := fnv.New64a()
	h.Write([]byte(operation))
	h.Write([]byte{':'})
	h.Write(canonical)

	return fmt.Sprintf("%s:%x", operation, h.Sum64()), nil
}

// decodeResult parses a response body. A non-JSON body or a body without the
// success indicator is a parse failure; success=false is a logical failure
// carrying the backend-supplied message.
func decodeResult(operation string, body []byte) (*Result, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeParse,
			Message:   "response body is not valid JSON",
			Cause:     err,
			Operation: operation,
		}
	}

	success, ok := fields["success"].(bool)
	if !ok {
		return nil, &ClientError{
			Type:      ErrorTypeParse,
			Message:   "response missing success indicator",
			Operation: operation,
		}
	}

	message, _ := fields["message"].(string)

	if !success {
		if message == "" {
			message = "request rejected by backend"
		}
		return nil, &ClientError{
			Type:      ErrorTypeLogical,
			Message:   message,
			Operation: operation,
		}
	}

	return &Result{
		Success: true,
		Message: message,
		Fields:  fields,
	}, nil
}
