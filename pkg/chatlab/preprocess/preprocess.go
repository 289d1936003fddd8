// Package preprocess implements the optional per-format rewrite step:
// strip redundant fields from oversized inputs into a trimmed temp file
// before the stream parser ever opens them.
package preprocess

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// Preprocessor is the narrow capability a format may optionally implement.
type Preprocessor interface {
	// NeedsPreprocess decides, from the path and its size, whether
	// Preprocess should run. Implementations must not open the file.
	NeedsPreprocess(path string, size int64) bool
	// Preprocess rewrites path into a new temporary file and returns its
	// path. The caller deletes the temp file after import regardless of
	// outcome. onProgress follows the same progress contract as a
	// parser's OnProgress.
	Preprocess(ctx context.Context, path string, totalBytes int64, onProgress func(model.Progress) error) (tempPath string, err error)
}

// ForFormat returns the Preprocessor registered for a format id, if any.
// Only WeChat exports are large enough in practice to carry the redundant
// per-message raw-protocol payloads this step exists to strip.
func ForFormat(id string) (Preprocessor, bool) {
	if id == "wechat" {
		return &WeChatTrimmer{}, true
	}
	return nil, false
}
