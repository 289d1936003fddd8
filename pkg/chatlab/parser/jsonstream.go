package parser

import (
	"encoding/json"
	"fmt"
	"io"
)

// ArrayElementFunc is called once per decoded element of a streamed JSON
// array; offset is the decoder's byte offset right after the element,
// usable to report progress without a second pass over the file.
type ArrayElementFunc func(raw json.RawMessage, offset int64) error

// StreamTopLevelArray walks a top-level JSON object looking for the named
// key and, once found, decodes its array value one element at a time via
// json.Decoder.Token/Decode, never materializing the whole array in
// memory. Other top-level keys are decoded into skip targets via the
// decoder's native skip
// (Decode into json.RawMessage, then discard) so later array keys can still
// be reached; this does hold each non-array top-level value in memory, but
// those are bounded metadata objects, not the message list.
func StreamTopLevelArray(r io.Reader, arrayKey string, fn ArrayElementFunc) (found bool, err error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return false, fmt.Errorf("expected top-level JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return false, fmt.Errorf("expected object key")
		}
		if key != arrayKey {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return false, err
			}
			continue
		}
		arrTok, err := dec.Token()
		if err != nil {
			return false, err
		}
		if delim, ok := arrTok.(json.Delim); !ok || delim != '[' {
			return false, fmt.Errorf("expected array for key %q", arrayKey)
		}
		for dec.More() {
			var elem json.RawMessage
			if err := dec.Decode(&elem); err != nil {
				return false, err
			}
			if err := fn(elem, dec.InputOffset()); err != nil {
				return false, err
			}
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return false, err
		}
		found = true
		// Keep draining remaining keys so later callers (avatar section
		// extraction) can still find what they need, but we've got what
		// this call wanted.
		continue
	}
	return found, nil
}

// DecodeTopLevelObject decodes the first JSON value read from r into dst
// in one pass, so memory use grows with that value; it suits only small,
// bounded inputs.
func DecodeTopLevelObject(r io.Reader, dst any) error {
	return json.NewDecoder(r).Decode(dst)
}
