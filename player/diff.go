package player

import "strconv"

// Paint operation kinds understood by the browser adapter.
const (
	OpReplaceList     = "replace-list"
	OpShowCard        = "show-card"
	OpHideCard        = "hide-card"
	OpSetActive       = "set-active"
	OpClearActive     = "clear-active"
	OpSetText         = "set-text"
	OpEmptyState      = "empty-state"
	OpShowPlayer      = "show-player"
	OpShowPlaceholder = "show-placeholder"
)

// Text targets for OpSetText.
const (
	TargetTitle     = "title"
	TargetSize      = "size"
	TargetDate      = "date"
	TargetTotal     = "total"
	TargetTotalSize = "total-size"
	TargetCount     = "count"
)

// Op is one paint instruction.
type Op struct {
	Op     string     `json:"op"`
	Index  int        `json:"index"`
	Target string     `json:"target,omitempty"`
	Text   string     `json:"text,omitempty"`
	Show   bool       `json:"show,omitempty"`
	Source string     `json:"source,omitempty"`
	Cards  []CardView `json:"cards,omitempty"`
}

// Diff returns the operations that turn a display painted for prev into one
// painted for next.
func Diff(prev, next View) []Op {
	var ops []Op

	if sameCards(prev.Cards, next.Cards) {
		for i := range next.Cards {
			p, n := prev.Cards[i], next.Cards[i]
			if p.Hidden != n.Hidden {
				kind := OpShowCard
				if n.Hidden {
					kind = OpHideCard
				}
				ops = append(ops, Op{Op: kind, Index: n.Index})
			}
		}
		for i := range next.Cards {
			if prev.Cards[i].IsActive && !next.Cards[i].IsActive {
				ops = append(ops, Op{Op: OpClearActive, Index: next.Cards[i].Index})
			}
		}
		for i := range next.Cards {
			if !prev.Cards[i].IsActive && next.Cards[i].IsActive {
				ops = append(ops, Op{Op: OpSetActive, Index: next.Cards[i].Index})
			}
		}
	} else {
		ops = append(ops, Op{Op: OpReplaceList, Cards: next.Cards})
	}

	if prev.EmptyState != next.EmptyState || prev.EmptyMessage != next.EmptyMessage {
		ops = append(ops, Op{Op: OpEmptyState, Show: next.EmptyState, Text: next.EmptyMessage})
	}

	texts := []struct {
		target     string
		prev, next string
	}{
		{TargetTitle, prev.Title, next.Title},
		{TargetSize, prev.SizeLabel, next.SizeLabel},
		{TargetDate, prev.DateLabel, next.DateLabel},
		{TargetTotal, prev.TotalLabel, next.TotalLabel},
		{TargetTotalSize, prev.TotalSize, next.TotalSize},
	}
	for _, t := range texts {
		if t.prev != t.next {
			ops = append(ops, Op{Op: OpSetText, Target: t.target, Text: t.next})
		}
	}
	if prev.Count != next.Count {
		ops = append(ops, Op{Op: OpSetText, Target: TargetCount, Text: strconv.Itoa(next.Count)})
	}

	switch {
	case next.Surface == Playing && (prev.Surface != Playing || prev.PlaySeq != next.PlaySeq || prev.Source != next.Source):
		ops = append(ops, Op{Op: OpShowPlayer, Source: next.Source})
	case next.Surface == Idle && prev.Surface == Playing:
		ops = append(ops, Op{Op: OpShowPlaceholder})
	}
	return ops
}

// Paint returns the operations that paint v onto a display in any prior
// state. Pages that reconnect use it to resynchronize.
func Paint(v View) []Op {
	ops := []Op{
		{Op: OpReplaceList, Cards: v.Cards},
		{Op: OpEmptyState, Show: v.EmptyState, Text: v.EmptyMessage},
		{Op: OpSetText, Target: TargetTitle, Text: v.Title},
		{Op: OpSetText, Target: TargetSize, Text: v.SizeLabel},
		{Op: OpSetText, Target: TargetDate, Text: v.DateLabel},
		{Op: OpSetText, Target: TargetTotal, Text: v.TotalLabel},
		{Op: OpSetText, Target: TargetTotalSize, Text: v.TotalSize},
		{Op: OpSetText, Target: TargetCount, Text: strconv.Itoa(v.Count)},
	}
	if v.Surface == Playing {
		return append(ops, Op{Op: OpShowPlayer, Source: v.Source})
	}
	return append(ops, Op{Op: OpShowPlaceholder})
}

// sameCards reports whether both lists hold the same cards, ignoring the
// hidden and active flags.
func sameCards(a, b []CardView) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Index != y.Index || x.URL != y.URL || x.Filename != y.Filename ||
			x.SizeLabel != y.SizeLabel || x.DateLabel != y.DateLabel {
			return false
		}
	}
	return true
}
