package domain

// ParsedSegment is one decoded <segment> element.
type ParsedSegment struct {
	Number    int
	Bytes     int64
	MessageID string
}

// ParsedFile is one decoded <file> element: poster/date/subject plus its
// ordered segments. Filename is sniffed from Subject by the parser.
type ParsedFile struct {
	Index    int
	Poster   string
	Date     int64
	Subject  string
	Filename string
	Groups   []string
	Segments []ParsedSegment
}

// TotalSize sums the declared segment sizes for this file.
func (f *ParsedFile) TotalSize() int64 {
	var total int64
	for _, s := range f.Segments {
		total += s.Bytes
	}
	return total
}

// ParsedNzb is the in-memory representation produced by the NZB parser.
type ParsedNzb struct {
	Title    string
	Password string
	Files    []ParsedFile
}

// TotalSize sums every file's declared size.
func (n *ParsedNzb) TotalSize() int64 {
	var total int64
	for i := range n.Files {
		total += n.Files[i].TotalSize()
	}
	return total
}

// TotalSegments counts every segment across every file.
func (n *ParsedNzb) TotalSegments() int {
	total := 0
	for i := range n.Files {
		total += len(n.Files[i].Segments)
	}
	return total
}

// SegmentKeys flattens the parsed document into the canonical tuples the
// NZB hash is computed over.
func (n *ParsedNzb) SegmentKeys() []SegmentKey {
	keys := make([]SegmentKey, 0, n.TotalSegments())
	for fi, f := range n.Files {
		for _, s := range f.Segments {
			keys = append(keys, SegmentKey{
				FileIndex:     fi,
				SegmentNumber: s.Number,
				MessageID:     s.MessageID,
				Bytes:         s.Bytes,
			})
		}
	}
	return keys
}
