// Package playlist serializes resolved entries into the M3U text format players load.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/snapetech/sportlist/internal/catalog"
)

// ErrNoEntries is returned when there is nothing to write. No file is created.
var ErrNoEntries = errors.New("playlist: no entries")

// BOM is the UTF-8 signature WriteFile puts before the text.
const BOM = "\uFEFF"

// Meta is applied to every entry at serialization time.
type Meta struct {
	UserAgent string
	Generator string    // defaults to "sportlist"
	Generated time.Time // zero means now
}

// Encode writes entries in order:
//
//	#EXTM3U
//	# Generated by <generator> at <RFC3339 UTC> (<N> entries)
//	#EXTINF:-1 group-title="<group>"[ tvg-logo="<logo>"],<name>
//	#EXTVLCOPT:http-referrer=<referer>   (only when set)
//	#EXTVLCOPT:http-user-agent=<ua>
//	#EXTHTTP:User-Agent:<ua>
//	<url>
//
// The first line is exactly #EXTM3U; Encode writes no BOM.
func Encode(w io.Writer, entries []catalog.Entry, meta Meta) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}
	gen := meta.Generator
	if gen == "" {
		gen = "sportlist"
	}
	at := meta.Generated
	if at.IsZero() {
		at = time.Now()
	}
	ua := oneLine(meta.UserAgent)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#EXTM3U\n# Generated by %s at %s (%d entries)\n", gen, at.UTC().Format(time.RFC3339), len(entries))
	for _, e := range entries {
		bw.WriteString(`#EXTINF:-1 group-title="` + attr(e.Group) + `"`)
		if e.Logo != "" {
			bw.WriteString(` tvg-logo="` + attr(e.Logo) + `"`)
		}
		bw.WriteString("," + oneLine(e.Name) + "\n")
		if e.Referer != "" {
			bw.WriteString("#EXTVLCOPT:http-referrer=" + oneLine(e.Referer) + "\n")
		}
		bw.WriteString("#EXTVLCOPT:http-user-agent=" + ua + "\n")
		bw.WriteString("#EXTHTTP:User-Agent:" + ua + "\n")
		bw.WriteString(oneLine(e.URL) + "\n")
	}
	return bw.Flush()
}

// attr keeps a value inside its double-quoted attribute.
func attr(s string) string {
	return strings.ReplaceAll(oneLine(s), `"`, "'")
}

func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
