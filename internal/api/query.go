package api

import (
	"net/url"
	"strconv"
	"strings"
)

// Query types accepted on the Meting surface.
const (
	typeSearch   = "search"
	typeSong     = "song"
	typeAlbum    = "album"
	typeArtist   = "artist"
	typePlaylist = "playlist"
	typeURL      = "url"
	typeLyric    = "lyric"
	typePic      = "pic"
)

var typeAliases = map[string]string{
	"songs":   typeSong,
	"artists": typeArtist,
	"albums":  typeAlbum,
}

// metingQuery is the parsed form of a Meting request. Numeric fields are
// zero when absent or unparsable.
type metingQuery struct {
	Server      string
	Type        string
	ID          string
	Keyword     string
	Format      bool
	Resolve     bool
	Lyric       bool
	Bitrate     int
	PictureSize int
	Concurrency int
	Category    int
	Page        int
	Limit       int
}

func parseQuery(values url.Values, defaultServer string) metingQuery {
	kind := strings.ToLower(strings.TrimSpace(values.Get("type")))
	if alias, ok := typeAliases[kind]; ok {
		kind = alias
	}
	keyword := values.Get("keyword")
	if keyword == "" {
		keyword = values.Get("s")
	}
	server := strings.TrimSpace(values.Get("server"))
	if server == "" {
		server = defaultServer
	}
	return metingQuery{
		Server:      server,
		Type:        kind,
		ID:          values.Get("id"),
		Keyword:     keyword,
		Format:      flag(values, "format", false),
		Resolve:     flag(values, "resolve", false),
		Lyric:       flag(values, "lrc", true),
		Bitrate:     number(values, "br"),
		PictureSize: number(values, "size"),
		Concurrency: number(values, "concurrency"),
		Category:    number(values, "category"),
		Page:        number(values, "page"),
		Limit:       number(values, "limit"),
	}
}

// flag reads a boolean parameter; only "true" and "1" are true.
func flag(values url.Values, key string, def bool) bool {
	if !values.Has(key) {
		return def
	}
	switch values.Get(key) {
	case "true", "1":
		return true
	default:
		return false
	}
}

func number(values url.Values, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
	if err != nil {
		return 0
	}
	return n
}
