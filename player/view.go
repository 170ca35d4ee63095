package player

// CardView is one display-ready list entry.
type CardView struct {
	Index     int    `json:"index"`
	Filename  string `json:"filename"`
	SizeLabel string `json:"sizeLabel"`
	DateLabel string `json:"dateLabel"`
	URL       string `json:"url"`
	IsActive  bool   `json:"isActive"`
	Hidden    bool   `json:"hidden"`
}

// View is the full projection of a State that a display layer paints.
type View struct {
	Title        string     `json:"title"`
	SizeLabel    string     `json:"sizeLabel"`
	DateLabel    string     `json:"dateLabel"`
	Surface      Surface    `json:"surface"`
	Source       string     `json:"source"`
	PlaySeq      uint64     `json:"playSeq"`
	TotalLabel   string     `json:"totalLabel"`
	TotalSize    string     `json:"totalSize"`
	Count        int        `json:"count"`
	Query        string     `json:"query"`
	EmptyState   bool       `json:"emptyState"`
	EmptyMessage string     `json:"emptyMessage"`
	Cards        []CardView `json:"cards"`
}

// View projects s for display.
func (s State) View() View {
	v := View{
		Title:      s.Title,
		SizeLabel:  s.SizeLabel,
		DateLabel:  s.DateLabel,
		Surface:    s.Surface,
		PlaySeq:    s.PlaySeq,
		TotalLabel: CountLabel(len(s.Cards)),
		TotalSize:  MBLabel(s.TotalSizeMB),
		Count:      len(s.Cards),
		Query:      s.Query,
		EmptyState: len(s.Visible) == 0,
		Cards:      make([]CardView, len(s.Cards)),
	}
	if s.Surface == Playing {
		v.Source = s.ActiveURL
	}
	if len(s.Cards) == 0 {
		v.EmptyMessage = EmptyNoVideos
	} else {
		v.EmptyMessage = EmptyNoMatch
	}
	visible := make(map[int]bool, len(s.Visible))
	for _, i := range s.Visible {
		visible[i] = true
	}
	for i, c := range s.Cards {
		v.Cards[i] = CardView{
			Index:     c.Index,
			Filename:  c.Filename,
			SizeLabel: c.SizeLabel,
			DateLabel: c.DateLabel,
			URL:       c.URL,
			IsActive:  i == s.Active,
			Hidden:    !visible[i],
		}
	}
	return v
}

// VisibleCards returns the entries of the visible set, in order.
func (v View) VisibleCards() []CardView {
	out := make([]CardView, 0, len(v.Cards))
	for _, c := range v.Cards {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// ActiveCount reports how many cards carry the active marker.
func (v View) ActiveCount() int {
	n := 0
	for _, c := range v.Cards {
		if c.IsActive {
			n++
		}
	}
	return n
}
