package sanitize

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/Wikid82/argus/internal/detect"
	"github.com/Wikid82/argus/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTracker struct {
	mu     sync.Mutex
	kinds  []models.EventKind
	byLoad []string
}

func (c *countingTracker) TrackSecurityEvent(kind models.EventKind, ip string, d models.EventDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	c.byLoad = append(c.byLoad, d.Payload)
}

var testCtx = detect.RequestContext{Endpoint: "/api/profile", UserAgent: "Mozilla/5.0 (X11)", IP: "192.0.2.10"}

func TestStringEscapesMarkup(t *testing.T) {
	got := String(`<script>alert("xss")</script>`)
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, ">")
	assert.NotContains(t, got, `"`)
	assert.Equal(t, "&lt;script&gt;alert(&quot;xss&quot;)&lt;/script&gt;", got)
}

func TestStringEscapesEachCharacter(t *testing.T) {
	assert.Equal(t, "a&amp;b", String("a&b"))
	assert.Equal(t, "O&#x27;Connor", String("O'Connor"))
	assert.Equal(t, "&amp;lt;", String("&lt;"))
}

func TestStringCoercion(t *testing.T) {
	assert.Equal(t, "123", String(123))
	assert.Equal(t, "123", String(float64(123)))
	assert.Equal(t, "4.5", String(json.Number("4.5")))
	assert.Equal(t, "null", String(nil))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, "[1,2]", String([]any{1, 2}))
}

func TestStringStripsControlsAndTrims(t *testing.T) {
	assert.Equal(t, "abc", String("a\x00b\u0085c"))
	assert.Equal(t, "hi there", String("  hi there \t"))
	assert.Equal(t, "linebreak", String("line\nbreak"))
	assert.Equal(t, "", String("\x01\x02"))
}

func TestStringLengthCap(t *testing.T) {
	assert.LessOrEqual(t, utf8.RuneCountInString(String(strings.Repeat("a", 2000))), MaxStringLength)

	// the cap is on the escaped value
	escaped := String(strings.Repeat("<", 400))
	assert.Equal(t, MaxStringLength, utf8.RuneCountInString(escaped))

	short := String(strings.Repeat("é", 10))
	assert.Equal(t, strings.Repeat("é", 10), short)
}

func TestObjectPreservesShape(t *testing.T) {
	tr := &countingTracker{}
	s := New(detect.NewDetector(tr))

	in := map[string]any{
		"name":  "<script>alert(1)</script>",
		"email": "john.doe@example.com",
		"age":   json.Number("27"),
		"admin": false,
		"bio":   nil,
		"nested": map[string]any{
			"comment": "' OR '1'='1",
			"tags":    []any{"go", "<b>bold</b>", json.Number("3")},
		},
	}

	out, ok := s.Object(in, testCtx).(map[string]any)
	require.True(t, ok)

	assert.Len(t, out, len(in))
	assert.NotContains(t, out["name"], "<script>")
	assert.Equal(t, "john.doe@example.com", out["email"])
	assert.Equal(t, json.Number("27"), out["age"])
	assert.Equal(t, false, out["admin"])
	assert.Nil(t, out["bio"])

	nested := out["nested"].(map[string]any)
	assert.NotContains(t, nested["comment"], "' OR '1'='1")
	tags := nested["tags"].([]any)
	require.Len(t, tags, 3)
	assert.Equal(t, "go", tags[0])
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", tags[1])
	assert.Equal(t, json.Number("3"), tags[2])

	// input is not mutated
	assert.Equal(t, "<script>alert(1)</script>", in["name"])

	assert.ElementsMatch(t, []models.EventKind{models.EventXSS, models.EventSQLInjection}, tr.kinds)
}

func TestObjectKeysTriggerDetectionButAreKept(t *testing.T) {
	tr := &countingTracker{}
	s := New(detect.NewDetector(tr))

	key := "<script>x</script>"
	out := s.Object(map[string]any{key: "ok"}, testCtx).(map[string]any)

	assert.Contains(t, out, key)
	assert.Equal(t, "ok", out[key])
	require.Len(t, tr.kinds, 1)
	assert.Equal(t, models.EventXSS, tr.kinds[0])
	assert.Equal(t, key, tr.byLoad[0])
}

func TestObjectScalarsAndTypedContainers(t *testing.T) {
	s := New(nil)

	assert.Nil(t, s.Object(nil, testCtx))
	assert.Equal(t, 42, s.Object(42, testCtx))
	assert.Equal(t, 1.5, s.Object(1.5, testCtx))
	assert.Equal(t, true, s.Object(true, testCtx))
	assert.Equal(t, "&lt;i&gt;", s.Object("<i>", testCtx))
	assert.Equal(t, []string{"a", "&amp;"}, s.Object([]string{"a", "&"}, testCtx))
	assert.Equal(t, map[string]string{"k": "&gt;"}, s.Object(map[string]string{"k": ">"}, testCtx))
	assert.Equal(t, []any{}, s.Object([]any{}, testCtx))

	var nilSanitizer *Sanitizer
	assert.Equal(t, "x", nilSanitizer.Object("x", testCtx))
}

func TestObjectWithoutContextDoesNotReport(t *testing.T) {
	tr := &countingTracker{}
	s := New(detect.NewDetector(tr))

	s.Object(map[string]any{"q": "UNION SELECT * FROM passwords"}, detect.RequestContext{IP: "192.0.2.1"})
	assert.Empty(t, tr.kinds)
}
