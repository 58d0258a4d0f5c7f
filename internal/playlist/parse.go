package playlist

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/snapetech/sportlist/internal/catalog"
)

const maxLineSize = 1 << 20 // 1 MiB per line

var errNoHeader = errors.New("playlist: missing #EXTM3U header")

// Parse reads a playlist written by Encode or WriteFile back into entries.
// Provider is not part of the format and stays empty. Unknown directives are ignored.
func Parse(r io.Reader) ([]catalog.Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var entries []catalog.Entry
	var cur *catalog.Entry
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first {
			line = strings.TrimPrefix(line, BOM)
			if !strings.HasPrefix(line, "#EXTM3U") {
				return nil, errNoHeader
			}
			first = false
			continue
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXTINF:"):
			e := parseEXTINF(line)
			cur = &e
		case strings.HasPrefix(line, "#EXTVLCOPT:http-referrer="):
			if cur != nil {
				cur.Referer = strings.TrimPrefix(line, "#EXTVLCOPT:http-referrer=")
			}
		case strings.HasPrefix(line, "#"):
		default:
			if cur != nil {
				cur.URL = line
				entries = append(entries, *cur)
				cur = nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if first {
		return nil, errNoHeader
	}
	return entries, nil
}

// parseEXTINF reads group-title, tvg-logo and the display name after the last top-level comma.
func parseEXTINF(line string) catalog.Entry {
	var e catalog.Entry
	e.Group = attrValue(line, "group-title")
	e.Logo = attrValue(line, "tvg-logo")
	// The name follows the first comma outside quotes.
	inQuote := false
	for i, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			e.Name = strings.TrimSpace(line[i+1:])
			return e
		}
	}
	return e
}

func attrValue(line, key string) string {
	i := strings.Index(line, key+`="`)
	if i < 0 {
		return ""
	}
	rest := line[i+len(key)+2:]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return ""
	}
	return rest[:j]
}
