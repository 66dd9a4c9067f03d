package transport

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// EnvelopeKind selects how a 200 response body is interpreted. Most of
// the backend wraps payloads in {"success": bool, "message", "data"};
// the invoice service family instead returns {"Code": int, "Message",
// "Data"} where Code 0 means success. The decoder is chosen at the
// transport boundary so callers never see raw envelopes.
type EnvelopeKind int

const (
	// EnvelopeSuccess is the boolean success-flag envelope (default).
	EnvelopeSuccess EnvelopeKind = iota
	// EnvelopeCode is the integer Code envelope used by the invoice
	// service.
	EnvelopeCode
)

// decodeEnvelope extracts the payload from a 200 body, or returns a
// business error when the envelope reports failure.
func decodeEnvelope(kind EnvelopeKind, body []byte) (json.RawMessage, *Error) {
	if !gjson.ValidBytes(body) {
		return nil, businessError("malformed response body")
	}

	switch kind {
	case EnvelopeCode:
		return decodeCodeEnvelope(body)
	default:
		return decodeSuccessEnvelope(body)
	}
}

func decodeSuccessEnvelope(body []byte) (json.RawMessage, *Error) {
	success := gjson.GetBytes(body, "success")
	if !success.Exists() {
		return nil, businessError("response missing success flag")
	}
	if !success.Bool() {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = "request rejected"
		}
		return nil, businessError(msg)
	}
	return rawData(body, "data"), nil
}

func decodeCodeEnvelope(body []byte) (json.RawMessage, *Error) {
	code := gjson.GetBytes(body, "Code")
	if !code.Exists() {
		return nil, businessError("response missing Code field")
	}
	if code.Int() != 0 {
		msg := gjson.GetBytes(body, "Message").String()
		if msg == "" {
			msg = gjson.GetBytes(body, "Msg").String()
		}
		if msg == "" {
			msg = "request rejected"
		}
		return nil, businessError(msg)
	}
	if data := rawData(body, "Data"); data != nil {
		return data, nil
	}
	return rawData(body, "data"), nil
}

func rawData(body []byte, path string) json.RawMessage {
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return nil
	}
	// gjson indexes into the original buffer when possible; copy so the
	// payload outlives the response body slice.
	raw := res.Raw
	out := make([]byte, len(raw))
	copy(out, raw)
	return json.RawMessage(out)
}
