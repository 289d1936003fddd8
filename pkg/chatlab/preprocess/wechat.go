package preprocess

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/tidwall/sjson"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

var (
	errNotObject = errors.New("preprocess: expected top-level JSON object")
	errNotArray  = errors.New("preprocess: expected JSON array")
)

// wechatStripFields are the per-message fields WeChat's raw protocol export
// carries that normalized parsing never reads: the original CDATA-wrapped
// protocol XML and thumbnail/cdn payloads duplicated by "content".
var wechatStripFields = []string{"rawXml", "cdnInfo", "thumbUrl", "rawContent"}

// WeChatTrimmer implements Preprocessor for oversized WeChat exports.
// It streams the source file's top-level object through
// once, rewriting each "messages" element with the redundant fields removed
// and copying every other top-level key through unchanged, never holding
// more than one message or one non-array top-level value in memory at a
// time — the same bounded-memory discipline as the stream parsers
// (pkg/chatlab/parser).
type WeChatTrimmer struct {
	// MinSizeBytes is the size threshold at or above which NeedsPreprocess
	// returns true; defaults to 64 MiB.
	MinSizeBytes int64
}

func (t *WeChatTrimmer) minSize() int64 {
	if t.MinSizeBytes > 0 {
		return t.MinSizeBytes
	}
	return 64 * 1024 * 1024
}

func (t *WeChatTrimmer) NeedsPreprocess(path string, size int64) bool {
	return size >= t.minSize()
}

func (t *WeChatTrimmer) Preprocess(ctx context.Context, path string, totalBytes int64, onProgress func(model.Progress) error) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "chatlab-wechat-trim-*.json")
	if err != nil {
		return "", err
	}
	tempPath := dst.Name()
	w := bufio.NewWriter(dst)

	if err := trimTopLevelArray(ctx, src, w, "messages", wechatStripFields, totalBytes, onProgress); err != nil {
		w.Flush()
		dst.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := w.Flush(); err != nil {
		dst.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

// trimTopLevelArray copies a top-level JSON object from r to w, rewriting
// each element of arrayKey with stripFields deleted and passing every other
// top-level key through as-is.
func trimTopLevelArray(ctx context.Context, r io.Reader, w io.Writer, arrayKey string, stripFields []string, totalBytes int64, onProgress func(model.Progress) error) error {
	dec := json.NewDecoder(r)
	if tok, err := dec.Token(); err != nil {
		return err
	} else if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}

	firstKey := true
	for dec.More() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		if !firstKey {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		firstKey = false
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return err
		}
		if _, err := w.Write(keyJSON); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ":"); err != nil {
			return err
		}

		if key != arrayKey {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			if _, err := w.Write(raw); err != nil {
				return err
			}
			continue
		}

		if err := trimArrayElements(dec, w, stripFields, totalBytes, onProgress); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return err
	}
	_, err := io.WriteString(w, "}")
	return err
}

func trimArrayElements(dec *json.Decoder, w io.Writer, stripFields []string, totalBytes int64, onProgress func(model.Progress) error) error {
	if tok, err := dec.Token(); err != nil {
		return err
	} else if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return errNotArray
	}
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}

	var count int64
	firstElem := true
	for dec.More() {
		var elem json.RawMessage
		if err := dec.Decode(&elem); err != nil {
			return err
		}
		b := []byte(elem)
		for _, f := range stripFields {
			var err error
			// Deleting through sjson keeps the element's remaining fields
			// byte-identical and in their original order.
			b, err = sjson.DeleteBytes(b, f)
			if err != nil {
				return err
			}
		}
		if !firstElem {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		firstElem = false
		if _, err := w.Write(b); err != nil {
			return err
		}
		count++
		if onProgress != nil && count%5000 == 0 {
			offset := dec.InputOffset()
			if err := onProgress(model.Progress{
				Stage:             model.StagePreprocess,
				BytesRead:         offset,
				TotalBytes:        totalBytes,
				MessagesProcessed: count,
				Percentage:        model.ComputePercentage(offset, totalBytes),
			}); err != nil {
				return err
			}
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return err
	}
	_, err := io.WriteString(w, "]")
	return err
}
