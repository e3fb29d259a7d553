// Package fingerprint derives content fingerprints for submissions so that
// resubmissions can be compared without storing or diffing full bodies.
package fingerprint

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// DomainSubmission prefixes every submission digest. Bump the suffix when the
// normalisation rules change so old and new digests never compare equal.
const DomainSubmission = "classroom-snapshot/submission/v2"

// Attachment is the fingerprint-relevant part of a submission attachment.
type Attachment struct {
	Title   string
	URL     string
	Content string
}

// Submission computes the hex BLAKE2b-256 digest of normalised content and
// attachments. Timestamps and grades never participate.
func Submission(content string, attachments []Attachment) string {
	sorted := make([]Attachment, len(attachments))
	copy(sorted, attachments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].URL != sorted[j].URL {
			return sorted[i].URL < sorted[j].URL
		}
		return sorted[i].Title < sorted[j].Title
	})

	var b strings.Builder
	writeField(&b, "content", NormalizeText(content))
	for _, a := range sorted {
		writeField(&b, "attachment.title", strings.TrimSpace(a.Title))
		writeField(&b, "attachment.url", strings.TrimSpace(a.URL))
		writeField(&b, "attachment.content", NormalizeText(a.Content))
	}

	return hashWithDomain(DomainSubmission, []byte(b.String()))
}

// NormalizeText converts CRLF to LF, trims trailing whitespace per line,
// collapses runs of blank lines and drops leading and trailing blank lines.
// Indentation is content and is kept.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}

// writeField length-prefixes values so that field boundaries are unambiguous.
func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(strconv.Itoa(len(value)))
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('\n')
}

func hashWithDomain(domain string, data []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
