package machine

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

var (
	jsonTrue  = []byte("true")
	jsonFalse = []byte("false")
)

// MarshalInputs renders the snapshot sent to clients.
func MarshalInputs(in Inputs) ([]byte, error) {
	return json.Marshal(in)
}

// UnmarshalOutputs decodes a remote command. The payload must be exactly one
// JSON object whose keys are output names, spelled exactly and each at most
// once, with boolean values. Missing fields default to false, trailing
// whitespace is allowed.
func UnmarshalOutputs(payload []byte) (out Outputs, err error) {
	out, err = decodeOutputs(payload)
	if err != nil {
		return Outputs{}, errors.Wrap(err, "invalid outputs payload")
	}
	return
}

func decodeOutputs(payload []byte) (out Outputs, err error) {
	dec := json.NewDecoder(bytes.NewReader(payload))

	tok, err := dec.Token()
	if err != nil {
		return
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		err = errors.Errorf("expected an object, got %v", tok)
		return
	}

	seen := map[string]bool{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return
		}
		name := tok.(string)
		if seen[name] {
			err = errors.Errorf("duplicate field %q", name)
			return
		}
		seen[name] = true

		var raw json.RawMessage
		err = dec.Decode(&raw)
		if err != nil {
			return
		}
		raw = bytes.TrimSpace(raw)
		var state bool
		switch {
		case bytes.Equal(raw, jsonTrue):
			state = true
		case bytes.Equal(raw, jsonFalse):
		default:
			err = errors.Errorf("field %q must be a boolean, got %s", name, raw)
			return
		}

		if !out.Set(name, state) {
			err = errors.Errorf("unknown field %q", name)
			return
		}
	}

	// closing brace
	_, err = dec.Token()
	if err != nil {
		return
	}

	_, err = dec.Token()
	if err != io.EOF {
		err = errors.Errorf("%d trailing bytes", len(payload)-int(dec.InputOffset()))
		return
	}

	return out, nil
}
