package player

import (
	"fmt"
	"time"

	"github.com/gosuda/notnon-video/catalog"
)

// Placeholder texts shown by the player and the list.
const (
	UntitledLabel    = "untitled"
	UnknownSizeLabel = "unknown"
	UnknownDateLabel = "date unknown"

	TitleIdle       = "select a video to play"
	TitleNoMatch    = "no matching video"
	TitleLoadFailed = "failed to load"

	EmptyNoVideos = "no videos yet"
	EmptyNoMatch  = "no videos match the search"
)

const dateLayout = "02 Jan 2006 15:04"

// SizeLabel formats a size in megabytes with two decimals.
func SizeLabel(sizeMB *float64) string {
	if sizeMB == nil {
		return UnknownSizeLabel
	}
	return MBLabel(*sizeMB)
}

// MBLabel formats mb as "12.35 MB".
func MBLabel(mb float64) string {
	return fmt.Sprintf("%.2f MB", mb)
}

// DateLabel formats an upload timestamp in loc, or the unknown placeholder.
func DateLabel(raw string, loc *time.Location) string {
	t, ok := catalog.ParseUploaded(raw)
	if !ok {
		return UnknownDateLabel
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}

// CountLabel is the total shown in the header, e.g. "3 video".
func CountLabel(n int) string {
	return fmt.Sprintf("%d video", n)
}

// BuildCards derives one card per record, in working-set order.
func BuildCards(ws catalog.WorkingSet, loc *time.Location) []Card {
	cards := make([]Card, len(ws))
	for i, r := range ws {
		name := r.Filename
		if name == "" {
			name = UntitledLabel
		}
		cards[i] = Card{
			Index:     i,
			URL:       r.URL,
			Filename:  name,
			SizeLabel: SizeLabel(r.SizeMB),
			DateLabel: DateLabel(r.UploadedAt, loc),
		}
	}
	return cards
}
