package player

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gosuda/notnon-video/catalog"
)

func fptr(f float64) *float64 { return &f }

func rec(name, url, uploaded string) catalog.Record {
	return catalog.Record{Filename: name, URL: url, UploadedAt: uploaded}
}

func loaded(records ...catalog.Record) *Controller {
	c := New(WithLocation(time.UTC))
	c.Load(catalog.NewWorkingSet(records))
	return c
}

func visibleNames(v View) []string {
	var out []string
	for _, c := range v.VisibleCards() {
		out = append(out, c.Filename)
	}
	return out
}

func TestScenarioA_SingleRecordSelect(t *testing.T) {
	c := loaded(catalog.Record{Filename: "a.mp4", URL: "/a.mp4", SizeMB: fptr(12.345), UploadedAt: "2024-01-01T10:00:00Z"})

	v := c.View()
	if len(v.Cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(v.Cards))
	}
	card := v.Cards[0]
	if card.SizeLabel != "12.35 MB" {
		t.Fatalf("size label = %q", card.SizeLabel)
	}
	if card.DateLabel != "01 Jan 2024 10:00" {
		t.Fatalf("date label = %q", card.DateLabel)
	}
	if v.Surface != Idle || v.Title != TitleIdle {
		t.Fatalf("expected idle before selection, got %v %q", v.Surface, v.Title)
	}

	ops := c.Select(0)
	s := c.State()
	if s.Surface != Playing || s.ActiveURL != "/a.mp4" {
		t.Fatalf("expected playing /a.mp4, got %v %q", s.Surface, s.ActiveURL)
	}
	v = c.View()
	if v.Title != "a.mp4" || v.SizeLabel != "12.35 MB" || v.DateLabel != "01 Jan 2024 10:00" {
		t.Fatalf("labels not updated: %+v", v)
	}
	if !hasOp(ops, OpShowPlayer) || !hasOp(ops, OpSetActive) {
		t.Fatalf("expected show-player and set-active ops, got %+v", ops)
	}
}

func TestScenarioB_EmptyManifest(t *testing.T) {
	c := loaded()
	v := c.View()
	if !v.EmptyState || v.EmptyMessage != EmptyNoVideos {
		t.Fatalf("expected empty state, got %v %q", v.EmptyState, v.EmptyMessage)
	}
	if v.TotalLabel != "0 video" {
		t.Fatalf("total label = %q", v.TotalLabel)
	}
	if v.TotalSize != "0.00 MB" {
		t.Fatalf("total size = %q", v.TotalSize)
	}
}

func TestScenarioC_SearchIsCaseInsensitive(t *testing.T) {
	c := loaded(rec("Intro.mp4", "/i.mp4", ""), rec("Outro.mp4", "/o.mp4", ""))
	c.Search("intro")
	if got := visibleNames(c.View()); !reflect.DeepEqual(got, []string{"Intro.mp4"}) {
		t.Fatalf("visible = %v", got)
	}
}

func TestSearch_MatchesMarkupCharacters(t *testing.T) {
	c := loaded(rec("x<y.mp4", "/x.mp4", ""), rec("Tom &amp; Jerry.mp4", "/t.mp4", ""), rec("plain.mp4", "/p.mp4", ""))
	c.Search("<y")
	if got := visibleNames(c.View()); !reflect.DeepEqual(got, []string{"x<y.mp4"}) {
		t.Fatalf("visible = %v", got)
	}
	c.Search("&amp;")
	if got := visibleNames(c.View()); !reflect.DeepEqual(got, []string{"Tom &amp; Jerry.mp4"}) {
		t.Fatalf("visible = %v", got)
	}
}

func TestScenarioD_FilteringOutActiveCardResets(t *testing.T) {
	c := loaded(rec("Intro.mp4", "/i.mp4", ""), rec("Outro.mp4", "/o.mp4", ""))
	c.Select(0)
	ops := c.Search("outro")

	s := c.State()
	if s.Surface != Idle || s.Active != -1 || s.ActiveURL != "" {
		t.Fatalf("expected idle with no selection, got %+v", s)
	}
	v := c.View()
	if v.Title != TitleNoMatch || v.SizeLabel != "" || v.DateLabel != "" {
		t.Fatalf("labels not reset: %q %q %q", v.Title, v.SizeLabel, v.DateLabel)
	}
	if v.ActiveCount() != 0 {
		t.Fatal("no card should be active")
	}
	if !hasOp(ops, OpShowPlaceholder) {
		t.Fatalf("expected show-placeholder, got %+v", ops)
	}

	// Clearing the query does not bring the selection back.
	c.Search("")
	if c.State().Surface != Idle {
		t.Fatal("selection must not be restored")
	}
}

func TestScenarioD_EmptyResultResets(t *testing.T) {
	c := loaded(rec("Intro.mp4", "/i.mp4", ""))
	c.Select(0)
	c.Search("zzz")
	v := c.View()
	if v.Surface != Idle || v.Title != TitleNoMatch {
		t.Fatalf("expected idle/no match, got %v %q", v.Surface, v.Title)
	}
	if !v.EmptyState || v.EmptyMessage != EmptyNoMatch {
		t.Fatalf("expected no-match empty state, got %v %q", v.EmptyState, v.EmptyMessage)
	}
}

func TestScenarioE_MissingFieldsFallBack(t *testing.T) {
	c := loaded(catalog.Record{URL: "/x.mp4", UploadedAt: "not a date"})
	v := c.View()
	if len(v.VisibleCards()) != 1 {
		t.Fatal("record should still be listed")
	}
	card := v.Cards[0]
	if card.SizeLabel != UnknownSizeLabel || card.DateLabel != UnknownDateLabel || card.Filename != UntitledLabel {
		t.Fatalf("unexpected fallbacks: %+v", card)
	}
}

func TestSearch_MatchesDefinition(t *testing.T) {
	records := []catalog.Record{
		rec("Holiday.MP4", "/1", "2024-03-01T00:00:00Z"),
		rec("work-demo.mp4", "/2", "2024-02-01T00:00:00Z"),
		rec("", "/3", "2024-01-01T00:00:00Z"),
		rec("DEMO reel.mov", "/4", "2023-12-01T00:00:00Z"),
	}
	queries := []string{"", "demo", "DEMO", "mp4", "untitled", "nothing", "  demo  "}
	for _, q := range queries {
		c := loaded(records...)
		c.Search(q)
		var want []string
		needle := strings.ToLower(strings.TrimSpace(q))
		for _, card := range c.View().Cards {
			if needle == "" || strings.Contains(strings.ToLower(card.Filename), needle) {
				want = append(want, card.Filename)
			}
		}
		if got := visibleNames(c.View()); !reflect.DeepEqual(got, want) {
			t.Errorf("query %q: visible %v, want %v", q, got, want)
		}
	}
}

func TestSearch_Idempotent(t *testing.T) {
	c := loaded(rec("a.mp4", "/a", ""), rec("b.mp4", "/b", ""))
	c.Select(1)
	c.Search("b")
	once := c.State()
	ops := c.Search("b")
	if !reflect.DeepEqual(once, c.State()) {
		t.Fatal("second identical search changed state")
	}
	if len(ops) != 0 {
		t.Fatalf("expected no ops, got %+v", ops)
	}
}

func TestSearch_KeepsVisibleSelection(t *testing.T) {
	c := loaded(rec("alpha.mp4", "/a", ""), rec("alphabet.mp4", "/b", ""), rec("beta.mp4", "/c", ""))
	c.Select(1)
	seq := c.State().PlaySeq
	c.Search("alpha")
	s := c.State()
	if s.Surface != Playing || s.Active != 1 || s.PlaySeq != seq {
		t.Fatalf("visible selection must be untouched, got %+v", s)
	}
}

func TestSelect_Ignored(t *testing.T) {
	c := loaded(rec("nourl.mp4", "", ""), rec("hidden.mp4", "/h", ""), rec("shown.mp4", "/s", ""))
	c.Search("s")
	before := c.State()

	for _, i := range []int{-1, 3, 0} {
		if ops := c.Select(i); len(ops) != 0 {
			t.Fatalf("select(%d) produced ops %+v", i, ops)
		}
	}
	c.Search("hidden")
	c.Search("s")
	if ops := c.SelectURL("/missing"); len(ops) != 0 {
		t.Fatalf("unknown url produced ops %+v", ops)
	}
	if !reflect.DeepEqual(before, c.State()) {
		t.Fatal("ignored selections changed state")
	}
}

func TestSelect_HiddenCardIgnored(t *testing.T) {
	c := loaded(rec("one.mp4", "/1", ""), rec("two.mp4", "/2", ""))
	c.Search("one")
	if ops := c.Select(1); len(ops) != 0 {
		t.Fatalf("hidden card was selectable: %+v", ops)
	}
	if ops := c.SelectURL("/2"); len(ops) != 0 {
		t.Fatalf("hidden card was selectable by url: %+v", ops)
	}
}

func TestSelect_SingleActive(t *testing.T) {
	c := loaded(rec("a", "/a", ""), rec("b", "/b", ""), rec("c", "/c", ""))
	for _, i := range []int{0, 2, 1, 1, 0} {
		c.Select(i)
		v := c.View()
		if v.ActiveCount() != 1 || !v.Cards[i].IsActive {
			t.Fatalf("after select(%d): %d active", i, v.ActiveCount())
		}
	}
}

func TestSelect_ReselectRebinds(t *testing.T) {
	c := loaded(rec("a", "/a", ""))
	c.Select(0)
	ops := c.Select(0)
	if len(ops) != 1 || ops[0].Op != OpShowPlayer || ops[0].Source != "/a" {
		t.Fatalf("expected a lone show-player op, got %+v", ops)
	}
}

func TestSelectURL(t *testing.T) {
	c := loaded(rec("a", "/a", ""), rec("b", "/b", ""))
	c.SelectURL("/b")
	if s := c.State(); s.Active != 1 || s.Surface != Playing {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestLoad_SortOrder(t *testing.T) {
	c := loaded(
		rec("old", "/1", "2022-01-01T00:00:00Z"),
		rec("none", "/2", ""),
		rec("new", "/3", "2024-06-01T12:00:00+02:00"),
		rec("garbage", "/4", "31/12/2023"),
		rec("mid", "/5", "2023-01-01T00:00:00Z"),
	)
	var got []string
	for _, card := range c.View().Cards {
		got = append(got, card.Filename)
	}
	want := []string{"new", "mid", "old", "none", "garbage"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order %v, want %v", got, want)
	}
}

func TestReload_KeepsSurvivingSelection(t *testing.T) {
	c := loaded(rec("a", "/a", ""), rec("b", "/b", ""))
	c.Select(1)
	seq := c.State().PlaySeq

	size := 5.0
	ops := c.Load(catalog.NewWorkingSet([]catalog.Record{
		{Filename: "new", URL: "/n", UploadedAt: "2025-01-01T00:00:00Z"},
		{Filename: "b renamed", URL: "/b", SizeMB: &size},
	}))
	s := c.State()
	if s.Surface != Playing || s.ActiveURL != "/b" || s.Active != 1 {
		t.Fatalf("selection lost: %+v", s)
	}
	if s.PlaySeq != seq || hasOp(ops, OpShowPlayer) {
		t.Fatal("surviving selection must not reload the source")
	}
	if s.Title != "b renamed" || s.SizeLabel != "5.00 MB" {
		t.Fatalf("labels not refreshed: %q %q", s.Title, s.SizeLabel)
	}
	if !hasOp(ops, OpReplaceList) {
		t.Fatalf("expected replace-list, got %+v", ops)
	}
}

func TestReload_DropsVanishedSelection(t *testing.T) {
	c := loaded(rec("a", "/a", ""), rec("b", "/b", ""))
	c.Select(0)
	ops := c.Load(catalog.NewWorkingSet([]catalog.Record{rec("b", "/b", "")}))
	s := c.State()
	if s.Surface != Idle || s.Active != -1 || s.Title != TitleIdle {
		t.Fatalf("expected reset, got %+v", s)
	}
	if !hasOp(ops, OpShowPlaceholder) {
		t.Fatalf("expected show-placeholder, got %+v", ops)
	}
}

func TestReload_ReappliesQuery(t *testing.T) {
	c := loaded(rec("cat.mp4", "/c", ""))
	c.Search("dog")
	c.Load(catalog.NewWorkingSet([]catalog.Record{rec("cat.mp4", "/c", ""), rec("dog.mp4", "/d", "")}))
	if got := visibleNames(c.View()); !reflect.DeepEqual(got, []string{"dog.mp4"}) {
		t.Fatalf("visible = %v", got)
	}
}

func TestLoadFailed(t *testing.T) {
	c := loaded(rec("a", "/a", ""))
	c.Select(0)
	c.Publish(nil, errors.New("boom"))
	v := c.View()
	if v.Title != TitleLoadFailed || v.Surface != Idle || len(v.Cards) != 0 || !v.EmptyState {
		t.Fatalf("unexpected view after failure: %+v", v)
	}

	c.Publish(catalog.NewWorkingSet([]catalog.Record{rec("a", "/a", "")}), nil)
	if c.View().Title != TitleIdle {
		t.Fatalf("title after recovery = %q", c.View().Title)
	}
}

func TestInvariant_AtMostOneActive(t *testing.T) {
	c := loaded(rec("ab", "/1", ""), rec("bc", "/2", ""), rec("cd", "/3", ""), rec("", "", ""))
	events := []Event{
		Select{Index: 0}, Search{Query: "b"}, Select{Index: 1}, Search{Query: "c"},
		Select{Index: 2}, Search{Query: "zz"}, Search{Query: ""}, Select{Index: 3},
		SelectURL{URL: "/3"}, Search{Query: "a"}, Select{Index: 0},
	}
	for i, ev := range events {
		c.Dispatch(ev)
		if n := c.View().ActiveCount(); n > 1 {
			t.Fatalf("event %d (%T): %d active cards", i, ev, n)
		}
	}
}

func hasOp(ops []Op, kind string) bool {
	for _, op := range ops {
		if op.Op == kind {
			return true
		}
	}
	return false
}
