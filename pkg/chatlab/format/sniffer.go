package format

import (
	"regexp"
	"strings"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// Detect evaluates the registry's descriptors in priority order against a
// bounded prefix of a file. It returns the first descriptor whose extension
// matches (when the descriptor constrains extensions), whose every regex
// pattern matches at least once in the prefix, and whose every required
// field name appears as a JSON key in the prefix. Detection is pure,
// bounded, and side-effect free: the caller owns reading the prefix bytes.
func (r *Registry) Detect(prefix []byte, ext string) (*Descriptor, *model.Diagnosis) {
	text := string(prefix)
	var partials []model.PartialMatch

	for _, d := range r.descriptors {
		if !extensionMatches(d, ext) {
			continue
		}
		missing := missingFields(text, d.Signature.RequiredFields)
		matchedPatterns := countMatchedPatterns(text, d.Signature.Patterns)

		if matchedPatterns == len(d.Signature.Patterns) && len(missing) == 0 {
			descCopy := d
			return &descCopy, nil
		}

		if matchedPatterns > 0 || len(missing) < len(d.Signature.RequiredFields) {
			partials = append(partials, model.PartialMatch{
				FormatName:    d.Name,
				MissingFields: missing,
			})
		}
	}

	return nil, &model.Diagnosis{
		Suggestion:     "unrecognized_format",
		PartialMatches: partials,
	}
}

func extensionMatches(d Descriptor, ext string) bool {
	if len(d.Extensions) == 0 {
		return true
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range d.Extensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

func countMatchedPatterns(text string, patterns []*regexp.Regexp) int {
	count := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			count++
		}
	}
	return count
}

func missingFields(text string, fields []string) []string {
	var missing []string
	for _, f := range fields {
		key := "\"" + f + "\""
		if !strings.Contains(text, key) {
			missing = append(missing, f)
		}
	}
	return missing
}
