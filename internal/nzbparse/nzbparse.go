// Package nzbparse turns NZB XML documents into domain.ParsedNzb trees and
// computes their content fingerprint.
package nzbparse

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

type xmlNzb struct {
	XMLName xml.Name  `xml:"nzb"`
	Head    xmlHead   `xml:"head"`
	Files   []xmlFile `xml:"file"`
}

type xmlHead struct {
	Meta []xmlMeta `xml:"meta"`
}

type xmlMeta struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlFile struct {
	Subject  string       `xml:"subject,attr"`
	Poster   string       `xml:"poster,attr"`
	Date     int64        `xml:"date,attr"`
	Groups   []string     `xml:"groups>group"`
	Segments []xmlSegment `xml:"segments>segment"`
}

type xmlSegment struct {
	Number    int    `xml:"number,attr"`
	Bytes     int64  `xml:"bytes,attr"`
	MessageID string `xml:",chardata"`
}

// subjectFilename sniffs a filename out of a newznab-style subject line,
// the part between the last pair of double quotes, e.g.
// `[1/20] - "My.Movie.2024.mkv" yEnc (1/500)`.
var subjectFilename = regexp.MustCompile(`"([^"]+)"`)

func filenameFromSubject(subject string) string {
	if ms := subjectFilename.FindAllStringSubmatch(subject, -1); len(ms) > 0 {
		return strings.TrimSpace(ms[len(ms)-1][1])
	}
	return strings.TrimSpace(subject)
}

// Parse decodes an NZB document from r into a domain.ParsedNzb.
//
// Errors are wrapped in *domain.InvalidNzbError: malformed XML, an empty
// file set, or any file with zero segments.
func Parse(r io.Reader) (*domain.ParsedNzb, error) {
	var doc xmlNzb
	dec := xml.NewDecoder(r)
	// NZB files commonly declare ISO-8859-1; its bytes map one-to-one onto
	// the first 256 Unicode code points, so decode them as runes.
	dec.CharsetReader = func(label string, in io.Reader) (io.Reader, error) {
		if !strings.EqualFold(label, "iso-8859-1") {
			return nil, fmt.Errorf("unsupported charset %q", label)
		}
		data, err := io.ReadAll(in)
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		return strings.NewReader(string(runes)), err
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, &domain.InvalidNzbError{Reason: "malformed xml: " + err.Error()}
	}
	if len(doc.Files) == 0 {
		return nil, &domain.InvalidNzbError{Reason: "no files present"}
	}

	parsed := &domain.ParsedNzb{}
	for _, m := range doc.Head.Meta {
		switch strings.ToLower(m.Type) {
		case "title", "name":
			parsed.Title = m.Value
		case "password":
			parsed.Password = m.Value
		}
	}

	parsed.Files = make([]domain.ParsedFile, 0, len(doc.Files))
	for idx, f := range doc.Files {
		if len(f.Segments) == 0 {
			return nil, &domain.InvalidNzbError{Reason: "file has zero segments"}
		}
		pf := domain.ParsedFile{
			Index:    idx,
			Poster:   f.Poster,
			Date:     f.Date,
			Subject:  f.Subject,
			Filename: filenameFromSubject(f.Subject),
			Groups:   append([]string(nil), f.Groups...),
			Segments: make([]domain.ParsedSegment, 0, len(f.Segments)),
		}
		for _, s := range f.Segments {
			pf.Segments = append(pf.Segments, domain.ParsedSegment{
				Number:    s.Number,
				Bytes:     s.Bytes,
				MessageID: strings.Trim(s.MessageID, " \t\r\n<>"),
			})
		}
		parsed.Files = append(parsed.Files, pf)
	}

	return parsed, nil
}

// Fingerprint computes the NZB hash used for duplicate detection: the
// SHA-256 over the canonicalised segment layout, independent of subject,
// poster, and group metadata so re-postings of identical content collide.
func Fingerprint(doc *domain.ParsedNzb) []byte {
	return domain.NzbFingerprint(doc.SegmentKeys())
}
