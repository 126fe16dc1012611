package service

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"divscan-go/internal/divergence"
	"divscan-go/internal/model"
)

func testAnnotation() model.Annotation {
	return model.Annotation{
		Tag:      "BearDiv_59_5",
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Kind:     model.KindRegularBearish,
		Price: model.Segment{
			StartOffset: 15, StartTime: 1700000000000, StartValue: 100,
			EndOffset: 5, EndTime: 1700036000000, EndValue: 110,
		},
		Oscillator: model.Segment{StartValue: 45, EndValue: 40},
	}
}

type fakeLedger struct {
	seen     map[int64]bool
	marks    int
	checkErr error
}

func (l *fakeLedger) Notified(a model.Annotation) (bool, error) {
	if l.checkErr != nil {
		return false, l.checkErr
	}
	return l.seen[a.Price.EndTime], nil
}

func (l *fakeLedger) MarkNotified(a model.Annotation) error {
	l.marks++
	if l.seen == nil {
		l.seen = map[int64]bool{}
	}
	l.seen[a.Price.EndTime] = true
	return nil
}

func (l *fakeLedger) RecentAnnotations(string, int64) ([]model.Annotation, error) {
	return nil, nil
}

func (l *fakeLedger) CountSince(time.Time) (int64, error) {
	return int64(len(l.seen)), nil
}

// recordingSender fails its first `failures` sends
type recordingSender struct {
	failures int
	sent     []string
}

func (r *recordingSender) send(message string) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("telegram: Too Many Requests: retry after 5")
	}
	r.sent = append(r.sent, message)
	return nil
}

func TestTelegramDraw_SkipsBackfillAndNotifiedAnchors(t *testing.T) {
	ledger := &fakeLedger{seen: map[int64]bool{1700036000000: true}}
	sender := &recordingSender{}
	s := &TelegramService{ledger: ledger, send: sender.send}

	historical := testAnnotation()
	historical.Historical = true
	historical.Price.EndTime = 1
	if err := s.Draw(historical); err != nil {
		t.Fatalf("historical: %v", err)
	}

	// Same anchor as an earlier scan, different tag.
	again := testAnnotation()
	again.Tag = "BearDiv_62_8"
	if err := s.Draw(again); err != nil {
		t.Fatalf("repeat: %v", err)
	}

	if len(sender.sent) != 0 || ledger.marks != 0 {
		t.Errorf("sent %d messages, marked %d anchors; want none", len(sender.sent), ledger.marks)
	}

	ledger.checkErr = errors.New("mongo down")
	fresh := testAnnotation()
	fresh.Price.EndTime = 1700039600000
	if err := s.Draw(fresh); err == nil {
		t.Error("ledger error was swallowed")
	}
	if len(sender.sent) != 0 {
		t.Error("message sent although the ledger could not be checked")
	}
}

func TestTelegramDraw_FailedSendIsRetried(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{failures: 1}
	s := &TelegramService{ledger: ledger, send: sender.send}

	first := testAnnotation()
	if err := s.Draw(first); err == nil {
		t.Fatal("expected the send error to be returned")
	}
	if ledger.marks != 0 {
		t.Fatal("anchor recorded although the send failed")
	}

	// The next scan reports the same divergence under a new tag.
	next := testAnnotation()
	next.Tag = "BearDiv_62_8"
	if err := s.Draw(next); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "BearDiv_62_8") {
		t.Fatalf("expected the retried alert to be sent, got %v", sender.sent)
	}
	if ledger.marks != 1 {
		t.Errorf("marks = %d, want 1", ledger.marks)
	}

	// Once sent, later scans stay quiet.
	later := testAnnotation()
	later.Tag = "BearDiv_65_11"
	if err := s.Draw(later); err != nil {
		t.Fatalf("later: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("anchor notified twice: %v", sender.sent)
	}
}

func TestAnnotationFilter_SameTagDifferentBars(t *testing.T) {
	// The same bar pattern seen by two process runs a day apart gets the same tag.
	run1 := testAnnotation()
	run2 := testAnnotation()
	run2.Price.StartTime += 24 * 3600 * 1000
	run2.Price.EndTime += 24 * 3600 * 1000
	if run1.Tag != run2.Tag {
		t.Fatal("fixture should share the tag")
	}

	if reflect.DeepEqual(annotationFilter(run1), annotationFilter(run2)) {
		t.Error("different divergences must not share a storage key")
	}
	if reflect.DeepEqual(notificationFilter(run1), notificationFilter(run2)) {
		t.Error("different divergences must not share a notification key")
	}

	// A later scan of the same divergence has a new tag but the same key.
	rescan := testAnnotation()
	rescan.Tag = "BearDiv_62_8"
	rescan.CurrentBar = 62
	if !reflect.DeepEqual(annotationFilter(run1), annotationFilter(rescan)) {
		t.Error("rescans of one divergence must share a storage key")
	}
	for _, key := range []string{"symbol", "interval", "kind", "price.start_time", "price.end_time"} {
		if _, ok := annotationFilter(run1)[key]; !ok {
			t.Errorf("storage key missing %q", key)
		}
	}
	if _, ok := annotationFilter(run1)["tag"]; ok {
		t.Error("tag must not be part of the storage key")
	}
}

func TestMultiSink(t *testing.T) {
	var got []string
	record := func(name string) divergence.Sink {
		return divergence.SinkFunc(func(a model.Annotation) error {
			got = append(got, name+":"+a.Tag)
			return nil
		})
	}
	failing := divergence.SinkFunc(func(model.Annotation) error { return errors.New("boom") })
	panicking := divergence.SinkFunc(func(model.Annotation) error { panic("render") })

	sink := MultiSink{record("a"), failing, nil, panicking, record("b")}
	err := sink.Draw(testAnnotation())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !strings.Contains(err.Error(), "boom") || !strings.Contains(err.Error(), "panic: render") {
		t.Errorf("err = %v", err)
	}
	if len(got) != 2 || got[0] != "a:BearDiv_59_5" || got[1] != "b:BearDiv_59_5" {
		t.Errorf("got = %v", got)
	}

	if err := (MultiSink{LogSink{}}).Draw(testAnnotation()); err != nil {
		t.Errorf("log sink: %v", err)
	}
}

func TestFormatAnnotationMessage(t *testing.T) {
	a := testAnnotation()
	a.Symbol = "A<B>"
	msg := formatAnnotationMessage(a)

	for _, want := range []string{"🔴", "Regular Bearish", "A&lt;B&gt;", "<code>100.00</code>", "<code>110.00</code>", "(+10.00%)", "45.0000", "40.0000", "BearDiv_59_5"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	a.Kind = model.KindHiddenBullish
	if msg := formatAnnotationMessage(a); !strings.Contains(msg, "🟢") || !strings.Contains(msg, "Hidden Bullish") {
		t.Errorf("hidden bullish message:\n%s", msg)
	}
}

func TestFormatStatus(t *testing.T) {
	got := formatStatus("1h", 5, 3)
	for _, want := range []string{"1h", "<b>Symbols:</b> 5", "Divergences (24h):</b> 3"} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}
}

func TestFormatRecentAndWatchlist(t *testing.T) {
	if got := formatRecent(nil); !strings.Contains(got, "No divergences") {
		t.Errorf("empty recent = %q", got)
	}
	got := formatRecent([]model.Annotation{testAnnotation(), testAnnotation()})
	if !strings.Contains(got, "(2)") || !strings.Contains(got, "2. 🔴") {
		t.Errorf("recent = %q", got)
	}

	if got := formatWatchlist(nil); !strings.Contains(got, "empty") {
		t.Errorf("empty watchlist = %q", got)
	}
	if got := formatWatchlist([]string{"BTCUSDT", "ETHUSDT"}); !strings.Contains(got, "(2)") || !strings.Contains(got, "BTCUSDT\nETHUSDT") {
		t.Errorf("watchlist = %q", got)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{65000.5, "65000.50"},
		{2.5, "2.50"},
		{0.5123, "0.512"},
		{0.05, "0.0500"},
		{0.000012345, "0.0000123"},
		{0.000001, "0.00000100"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.price); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got, err := NormalizeSymbol(" ethusdt "); err != nil || got != "ETHUSDT" {
		t.Errorf("got %q, %v", got, err)
	}
	for _, bad := range []string{"", "USDT", "BTCEUR"} {
		if _, err := NormalizeSymbol(bad); err == nil {
			t.Errorf("NormalizeSymbol(%q) accepted", bad)
		}
	}
}
