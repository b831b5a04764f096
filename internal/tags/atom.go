package tags

import (
	"encoding/xml"
	"time"
)

// ContentTypeAtom is the media type for rendered tag feeds.
const ContentTypeAtom = "application/atom+xml; charset=utf-8"

// Second precision; time.RFC3339 would emit fractional seconds for
// sub-second values, which RadioTAG receivers do not expect.
const atomTimeLayout = "2006-01-02T15:04:05Z"

// FormatAtomTime renders a timestamp the way tag feeds expect.
func FormatAtomTime(value time.Time) string {
	return value.UTC().Format(atomTimeLayout)
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	XMLNS   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Author  atomAuthor  `xml:"author"`
	Entries []atomEntry `xml:"entry"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	ID        string `xml:"id"`
	Updated   string `xml:"updated"`
	Published string `xml:"published"`
	Summary   string `xml:"summary"`
}

// Title returns the human-readable entry title for a tag.
func (t Tag) Title() string {
	return "Tag: " + t.Bearer + " at " + FormatAtomTime(t.Time)
}

// Description returns the entry summary for a tag.
func (t Tag) Description() string {
	return "Description of tag: " + t.Bearer + " at " + FormatAtomTime(t.Time)
}

// RenderFeed renders an Atom feed of the given tags for a client. The feed
// timestamp follows the newest tag, or now when the client has no tags yet.
func RenderFeed(authorName, clientID string, records []Tag, now time.Time) ([]byte, error) {
	updated := now
	if len(records) > 0 {
		updated = records[0].Time
	}

	feed := atomFeed{
		XMLNS:   "http://www.w3.org/2005/Atom",
		Title:   "Tags",
		ID:      "urn:radiotag:client:" + clientID,
		Updated: FormatAtomTime(updated),
		Author:  atomAuthor{Name: authorName},
		Entries: make([]atomEntry, 0, len(records)),
	}

	for _, record := range records {
		feed.Entries = append(feed.Entries, atomEntry{
			Title:     record.Title(),
			ID:        "urn:uuid:" + record.ID,
			Updated:   FormatAtomTime(record.Time),
			Published: FormatAtomTime(record.Time),
			Summary:   record.Description(),
		})
	}

	document, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), document...), nil
}
