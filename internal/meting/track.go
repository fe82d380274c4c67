package meting

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ArtistSeparator joins artist names on output.
const ArtistSeparator = " / "

// ID is an opaque provider identifier. It remembers whether it arrived as a
// JSON number or a string so it is echoed back in the same form.
type ID struct {
	text    string
	numeric bool
}

// StringID returns a textual identifier.
func StringID(s string) ID { return ID{text: s} }

// NumericID returns an identifier that encodes as a JSON number.
func NumericID(n int64) ID { return ID{text: strconv.FormatInt(n, 10), numeric: true} }

// String returns the identifier as sent to providers.
func (id ID) String() string { return id.text }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id.text == "" }

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.text), nil
	}
	return EncodeJSON(id.text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(raw []byte) error {
	v, err := decodeJSON(raw)
	if err != nil {
		return err
	}
	*id = idFrom(v)
	return nil
}

func idFrom(v any) ID {
	switch t := v.(type) {
	case string:
		return ID{text: t}
	case json.Number:
		return ID{text: t.String(), numeric: true}
	case float64:
		return ID{text: strconv.FormatFloat(t, 'f', -1, 64), numeric: true}
	case int:
		return ID{text: strconv.Itoa(t), numeric: true}
	case int64:
		return ID{text: strconv.FormatInt(t, 10), numeric: true}
	default:
		return ID{}
	}
}

// Track is the normalized form of one song record returned by a provider.
type Track struct {
	Name    string
	Artist  []string
	Album   json.RawMessage
	ID      ID
	URLID   ID
	PicID   ID
	LyricID ID
	Source  string
	URL     string
	Pic     string
	Lrc     string
}

// Resolved reports whether both the url and picture links are present.
func (t Track) Resolved() bool {
	return t.URL != "" && t.Pic != ""
}

// HasResolvableID reports whether any id usable for link resolution is set.
func (t Track) HasResolvableID() bool {
	return !t.ID.IsZero() || !t.URLID.IsZero() || !t.PicID.IsZero()
}

// ArtistLine joins the artist names for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artist, ArtistSeparator)
}

type trackJSON struct {
	Name    string          `json:"name"`
	Artist  string          `json:"artist"`
	Album   json.RawMessage `json:"album,omitempty"`
	ID      ID              `json:"id,omitzero"`
	URLID   ID              `json:"url_id,omitzero"`
	PicID   ID              `json:"pic_id,omitzero"`
	LyricID ID              `json:"lyric_id,omitzero"`
	Source  string          `json:"source,omitempty"`
	URL     string          `json:"url"`
	Pic     string          `json:"pic"`
	Lrc     string          `json:"lrc,omitempty"`
}

// MarshalJSON emits the gateway's record shape with artists joined.
func (t Track) MarshalJSON() ([]byte, error) {
	return EncodeJSON(trackJSON{
		Name:    t.Name,
		Artist:  t.ArtistLine(),
		Album:   t.Album,
		ID:      t.ID,
		URLID:   t.URLID,
		PicID:   t.PicID,
		LyricID: t.LyricID,
		Source:  t.Source,
		URL:     t.URL,
		Pic:     t.Pic,
		Lrc:     t.Lrc,
	})
}

// UnmarshalJSON accepts any provider record shape via TrackFromRecord.
func (t *Track) UnmarshalJSON(raw []byte) error {
	v, err := decodeJSON(raw)
	if err != nil {
		return err
	}
	rec, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("track: expected object, got %T", v)
	}
	*t = TrackFromRecord(rec)
	return nil
}

// Key aliases seen across providers, most specific first.
var (
	nameKeys    = []string{"name", "title"}
	artistKeys  = []string{"artist", "author", "artists"}
	idKeys      = []string{"id", "song_id", "songId"}
	urlIDKeys   = []string{"url_id", "urlId", "urlID"}
	picIDKeys   = []string{"pic_id", "picId", "picID"}
	lyricIDKeys = []string{"lyric_id", "lyricId", "lrc_id"}
)

// TrackFromRecord normalizes a decoded provider record. Aliased keys are
// resolved here, once. The url and lyric ids fall back to the stable id;
// the picture id does not, since providers key artwork separately.
func TrackFromRecord(rec map[string]any) Track {
	t := Track{
		Name:    firstString(rec, nameKeys...),
		Artist:  artistsFrom(firstValue(rec, artistKeys...)),
		ID:      firstID(rec, idKeys...),
		URLID:   firstID(rec, urlIDKeys...),
		PicID:   firstID(rec, picIDKeys...),
		LyricID: firstID(rec, lyricIDKeys...),
		Source:  firstString(rec, "source"),
		URL:     firstString(rec, "url"),
		Pic:     firstString(rec, "pic"),
		Lrc:     firstString(rec, "lrc"),
	}
	if album, ok := rec["album"]; ok && album != nil {
		if raw, err := EncodeJSON(album); err == nil {
			t.Album = raw
		}
	}
	if t.URLID.IsZero() {
		t.URLID = t.ID
	}
	if t.LyricID.IsZero() {
		t.LyricID = t.ID
	}
	return t
}

func firstValue(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func firstID(rec map[string]any, keys ...string) ID {
	for _, k := range keys {
		if id := idFrom(rec[k]); !id.IsZero() {
			return id
		}
	}
	return ID{}
}

func artistsFrom(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch a := item.(type) {
			case string:
				out = append(out, a)
			case map[string]any:
				if name := firstString(a, "name"); name != "" {
					out = append(out, name)
				}
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return nil
	}
}
