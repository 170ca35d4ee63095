// Package player holds the list and playback controller: a pure state machine
// over the manifest's cards plus a View projection and a paint diff for the
// display layer.
package player

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosuda/notnon-video/catalog"
)

// Surface is the state of the single playback surface.
type Surface int

const (
	// Idle shows the placeholder with no source bound.
	Idle Surface = iota
	// Playing shows the video element with a source bound and play requested.
	Playing
)

func (s Surface) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

func (s Surface) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Surface) UnmarshalText(b []byte) error {
	switch string(b) {
	case "playing":
		*s = Playing
	case "idle":
		*s = Idle
	default:
		return fmt.Errorf("unknown surface %q", b)
	}
	return nil
}

// Card is a rendered manifest record with its derived display fields.
type Card struct {
	Index     int
	URL       string
	Filename  string
	SizeLabel string
	DateLabel string
}

// State is everything the controller knows. Values are treated as immutable:
// Reduce never writes into slices it received.
type State struct {
	Cards       []Card
	Visible     []int
	Query       string
	TotalSizeMB float64

	Active    int
	ActiveURL string
	Surface   Surface
	PlaySeq   uint64

	Title     string
	SizeLabel string
	DateLabel string
}

// NewState returns the initial state: nothing loaded, nothing playing.
func NewState() State {
	return State{
		Visible: []int{},
		Active:  -1,
		Surface: Idle,
		Title:   TitleIdle,
	}
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// Load replaces the working set. Loc is used for date labels.
type Load struct {
	Set catalog.WorkingSet
	Loc *time.Location
}

// LoadFailed reports that the manifest could not be loaded.
type LoadFailed struct {
	Err error
}

// Search sets the filter query.
type Search struct {
	Query string
}

// Select activates the card at Index.
type Select struct {
	Index int
}

// SelectURL activates the first visible card whose URL matches.
type SelectURL struct {
	URL string
}

func (Load) isEvent()       {}
func (LoadFailed) isEvent() {}
func (Search) isEvent()     {}
func (Select) isEvent()     {}
func (SelectURL) isEvent()  {}

// Reduce applies ev to s and returns the next state.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case Load:
		return reduceLoad(s, ev)
	case LoadFailed:
		s.Cards = nil
		s.Visible = []int{}
		s.TotalSizeMB = 0
		s = stop(s)
		s.Title = TitleLoadFailed
		return s
	case Search:
		return reduceSearch(s, ev.Query)
	case Select:
		return activate(s, ev.Index)
	case SelectURL:
		for _, i := range s.Visible {
			if s.Cards[i].URL != "" && s.Cards[i].URL == ev.URL {
				return activate(s, i)
			}
		}
		return s
	}
	return s
}

func reduceLoad(s State, ev Load) State {
	prevURL := ""
	if s.Active >= 0 {
		prevURL = s.ActiveURL
	}
	s.Cards = BuildCards(ev.Set, ev.Loc)
	s.TotalSizeMB = catalog.TotalSizeMB(ev.Set)
	s.Visible = filter(s.Cards, s.Query)
	s.Active = -1

	if prevURL != "" {
		for _, i := range s.Visible {
			if s.Cards[i].URL == prevURL {
				// Same source keeps playing; only the labels are refreshed.
				c := s.Cards[i]
				s.Active = i
				s.ActiveURL = c.URL
				s.Title, s.SizeLabel, s.DateLabel = c.Filename, c.SizeLabel, c.DateLabel
				return s
			}
		}
	}
	s = stop(s)
	if len(s.Visible) == 0 && s.Query != "" {
		s.Title = TitleNoMatch
	}
	return s
}

func reduceSearch(s State, query string) State {
	s.Query = strings.TrimSpace(query)
	s.Visible = filter(s.Cards, s.Query)
	if len(s.Visible) == 0 || (s.Active >= 0 && !contains(s.Visible, s.Active)) {
		s = stop(s)
		s.Title = TitleNoMatch
	}
	return s
}

func activate(s State, i int) State {
	if i < 0 || i >= len(s.Cards) || !contains(s.Visible, i) {
		return s
	}
	c := s.Cards[i]
	if c.URL == "" {
		return s
	}
	s.Active = i
	s.ActiveURL = c.URL
	s.Surface = Playing
	s.PlaySeq++
	s.Title, s.SizeLabel, s.DateLabel = c.Filename, c.SizeLabel, c.DateLabel
	return s
}

// stop returns the surface to Idle and clears the selection and labels.
func stop(s State) State {
	s.Active = -1
	s.ActiveURL = ""
	s.Surface = Idle
	s.Title = TitleIdle
	s.SizeLabel = ""
	s.DateLabel = ""
	return s
}

func filter(cards []Card, query string) []int {
	q := strings.ToLower(query)
	out := make([]int, 0, len(cards))
	for _, c := range cards {
		if q == "" || strings.Contains(strings.ToLower(c.Filename), q) {
			out = append(out, c.Index)
		}
	}
	return out
}

func contains(idx []int, i int) bool {
	for _, v := range idx {
		if v == i {
			return true
		}
	}
	return false
}
