// Package sanitize escapes untrusted strings and walks decoded JSON payloads,
// escaping every string leaf while leaving the payload shape untouched.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Wikid82/argus/internal/detect"
)

// MaxStringLength caps the rune length of a sanitized string.
const MaxStringLength = 1000

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// String coerces input to text, removes control characters, HTML-escapes
// & < > " ' and trims. The length cap applies to the final escaped value.
func String(input any) string {
	s := coerce(input)
	s = strings.Map(dropControl, s)
	s = htmlEscaper.Replace(s)
	s = strings.TrimSpace(s)
	return truncate(s, MaxStringLength)
}

func coerce(input any) string {
	switch v := input.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// dropControl removes C0 controls, DEL and C1 controls.
func dropControl(r rune) rune {
	if r <= 0x1F || (r >= 0x7F && r <= 0x9F) {
		return -1
	}
	return r
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Sanitizer walks decoded payloads. Every string it meets, keys included, is
// run through the detectors first so threats are reported, but detection never
// fails the walk: the escaped value is always returned.
type Sanitizer struct {
	detector *detect.Detector
}

// New returns a Sanitizer reporting detections through d. d may be nil.
func New(d *detect.Detector) *Sanitizer {
	return &Sanitizer{detector: d}
}

// Object returns a copy of value with every string leaf sanitized. nil,
// numbers and booleans pass through unchanged; slices keep order and length;
// maps keep their original keys.
func (s *Sanitizer) Object(value any, rc detect.RequestContext) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s.inspect(v, rc)
		return String(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.Object(item, rc)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			// keys trigger detection but are not renamed
			s.inspect(key, rc)
			out[key] = s.Object(item, rc)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			s.inspect(item, rc)
			out[i] = String(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			s.inspect(key, rc)
			s.inspect(item, rc)
			out[key] = String(item)
		}
		return out
	default:
		return value
	}
}

func (s *Sanitizer) inspect(str string, rc detect.RequestContext) {
	var d *detect.Detector
	if s != nil {
		d = s.detector
	}
	d.SQLInjection(str, rc)
	d.XSS(str, rc)
}
