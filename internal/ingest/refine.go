package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hoangvle/recall-cycle/internal/store"
)

// RawSource is an unrefined excerpt as it arrives from an ingest channel.
type RawSource struct {
	Title      string
	Locator    string
	URL        string
	DomainPath string
	Excerpt    string
}

const unknownDomain = "unknown/unknown/unknown"

// Refine normalizes a raw source and splits it into queue-ready sources
// whose excerpts fit the configured length window. Sources that cannot be
// made queueable (no locator, excerpt too short) come back as rejects.
func Refine(raw RawSource, excerptMin, excerptMax int) (accepted, rejected []store.Source) {
	excerpt := strings.TrimSpace(norm.NFKC.String(raw.Excerpt))
	domain := raw.DomainPath
	if domain == "" {
		domain = unknownDomain
	}
	locator := raw.Locator
	if locator == "" && raw.URL != "" {
		locator = "unknown"
	}

	build := func(exc string) store.Source {
		return store.Source{
			SourceID:   SourceID(raw.URL, locator, exc),
			Title:      raw.Title,
			Locator:    locator,
			URL:        raw.URL,
			DomainPath: domain,
			Excerpt:    exc,
		}
	}

	if locator == "" || excerpt == "" {
		return nil, []store.Source{build(excerpt)}
	}

	chunks := splitExcerpt(excerpt, excerptMin, excerptMax)
	if len(chunks) == 0 {
		return nil, []store.Source{build(excerpt)}
	}
	for _, c := range chunks {
		accepted = append(accepted, build(c))
	}
	return accepted, nil
}

// SourceID derives the stable queue identity of an excerpt. The same
// url/locator/excerpt triple always maps to the same id, so re-ingesting a
// file is a no-op.
func SourceID(url, locator, excerpt string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", url, locator, excerpt)))
	return hex.EncodeToString(sum[:])[:16]
}

// splitExcerpt packs sentences greedily into chunks of excerptMin to
// excerptMax characters. Text shorter than the minimum yields nothing;
// a sentence longer than the maximum is force-split.
func splitExcerpt(text string, excerptMin, excerptMax int) []string {
	runes := []rune(text)
	if len(runes) < excerptMin {
		return nil
	}
	if len(runes) <= excerptMax {
		return []string{text}
	}

	var chunks []string
	var cur []rune
	flush := func() {
		if len(cur) >= excerptMin {
			chunks = append(chunks, string(cur))
		}
		cur = nil
	}

	for _, sentence := range sentences(text) {
		s := []rune(sentence)
		if len(cur)+len(s) <= excerptMax {
			cur = append(cur, s...)
			continue
		}
		flush()
		if len(s) > excerptMax {
			for i := 0; i < len(s); i += excerptMax {
				end := i + excerptMax
				if end > len(s) {
					end = len(s)
				}
				if end-i >= excerptMin {
					chunks = append(chunks, string(s[i:end]))
				}
			}
			continue
		}
		cur = s
	}

	if len(cur) >= excerptMin {
		chunks = append(chunks, string(cur))
	} else if len(cur) > 0 && len(chunks) > 0 {
		last := []rune(chunks[len(chunks)-1])
		if len(last)+len(cur) <= excerptMax {
			chunks[len(chunks)-1] = string(last) + string(cur)
		}
	}

	if len(chunks) == 0 {
		chunks = []string{string(runes[:excerptMax])}
	}
	return chunks
}

// sentences splits text after terminal punctuation, keeping the
// terminators so chunk lengths reflect the original text.
func sentences(text string) []string {
	var out []string
	var cur []rune
	for _, r := range text {
		cur = append(cur, r)
		switch r {
		case '.', '!', '?', '。', '\n':
			if strings.TrimSpace(string(cur)) != "" {
				out = append(out, string(cur))
			}
			cur = nil
		}
	}
	if strings.TrimSpace(string(cur)) != "" {
		out = append(out, string(cur))
	}
	return out
}
