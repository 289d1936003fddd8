package parser

import (
	"bufio"
	"fmt"
	"io"
)

// ExtractSection performs a second bounded scan through r to find the value
// associated with the top-level key name and return its raw bytes, using a
// brace/bracket-matching state machine that respects string escapes. This
// is used for formats whose avatar index lives in a separate top-level
// section that the initial bounded-prefix read may not have reached.
func ExtractSection(r io.Reader, key string) ([]byte, bool, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	needle := []byte("\"" + key + "\"")
	if !scanToNeedle(br, needle) {
		return nil, false, nil
	}
	if !scanToValueStart(br) {
		return nil, false, fmt.Errorf("malformed JSON after key %q", key)
	}
	// Peek the first byte of the value to know whether to brace-match an
	// object/array or just copy a scalar up to the next comma/brace.
	first, err := br.ReadByte()
	if err != nil {
		return nil, false, err
	}
	if first != '{' && first != '[' {
		// Scalar value (string/number/bool/null): scan to the next
		// unescaped top-level delimiter.
		value := []byte{first}
		inString := first == '"'
		escaped := false
		for {
			b, err := br.ReadByte()
			if err != nil {
				return nil, false, err
			}
			if inString {
				value = append(value, b)
				if escaped {
					escaped = false
					continue
				}
				if b == '\\' {
					escaped = true
					continue
				}
				if b == '"' {
					inString = false
				}
				continue
			}
			if b == ',' || b == '}' || b == ']' {
				return value, true, nil
			}
			value = append(value, b)
		}
	}

	open := first
	close := byte('}')
	if first == '[' {
		close = ']'
	}
	depth := 1
	value := []byte{first}
	inString := false
	escaped := false
	for depth > 0 {
		b, err := br.ReadByte()
		if err != nil {
			return nil, false, err
		}
		value = append(value, b)
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if b == '\\' {
				escaped = true
				continue
			}
			if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
		}
	}
	return value, true, nil
}

// scanToNeedle advances br past the first occurrence of needle, respecting
// nothing in particular (the needle is a quoted key, which cannot appear
// inside another string's escape sequence in a way that matters here).
func scanToNeedle(br *bufio.Reader, needle []byte) bool {
	matched := 0
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false
		}
		if b == needle[matched] {
			matched++
			if matched == len(needle) {
				return true
			}
		} else if b == needle[0] {
			matched = 1
		} else {
			matched = 0
		}
	}
}

// scanToValueStart advances br past the ':' separating a key from its value
// and any intervening whitespace, leaving the reader positioned at the
// first byte of the value.
func scanToValueStart(br *bufio.Reader) bool {
	sawColon := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false
		}
		if !sawColon {
			if b == ':' {
				sawColon = true
			}
			continue
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return false
		}
		return true
	}
}
