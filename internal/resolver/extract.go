package resolver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/JakeFAU/meting-gateway/internal/meting"
)

// ExtractLink pulls a usable URL out of a link descriptor. It accepts a
// plain text URL, JSON-encoded text carrying a "url" key, or a structured
// value carrying a "url" key. JSON is tried first; text that does not parse
// is taken as the URL itself. A null descriptor yields "". It never fails.
func ExtractLink(p meting.Payload) string {
	switch p.Kind() {
	case meting.KindText:
		text, _ := p.Text()
		return extractFromText(text)
	case meting.KindValue:
		return extractFromValue(p.Decode().Value)
	default:
		return ""
	}
}

func extractFromText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if !gjson.Valid(text) {
		return text
	}
	res := gjson.Parse(text)
	switch {
	case res.IsObject():
		return res.Get("url").String()
	case res.IsArray():
		// Some providers wrap a single descriptor in a list.
		return res.Get("0.url").String()
	case res.Type == gjson.String:
		return res.String()
	default:
		return ""
	}
}

func extractFromValue(v any) string {
	switch t := v.(type) {
	case string:
		return extractFromText(t)
	case map[string]any:
		return stringField(t["url"])
	case []any:
		if len(t) == 0 {
			return ""
		}
		if first, ok := t[0].(map[string]any); ok {
			return stringField(first["url"])
		}
		return ""
	default:
		return ""
	}
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// LyricReference builds a URL pointing back at this gateway that fetches the
// lyric on demand: <base>/?server=<server>&type=lyric&id=<id>.
func LyricReference(base, server, id string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString("/?server=")
	b.WriteString(url.QueryEscape(server))
	b.WriteString("&type=lyric&id=")
	b.WriteString(url.QueryEscape(id))
	return b.String()
}
