package channel

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestUpsertLastWriteWins(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(New("@a", "first", 10, StageNew))
	r.Upsert(New(" @a ", " second ", 20, StageConfirmed))

	got, ok := r.Get("@a")
	if !ok {
		t.Fatal("expected @a to exist")
	}
	want := Channel{Name: "@a", Description: "second", Count: 20, Stage: StageConfirmed}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(@a) = %+v, want %+v", got, want)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	r := NewRegistry(New("@a", "", 1, StageNew))

	if r.Remove("@missing") {
		t.Fatal("Remove(@missing) = true, want false")
	}
	if r.Len() != 1 {
		t.Fatalf("registry changed after missing remove: len=%d", r.Len())
	}
	if !r.Remove("@a") {
		t.Fatal("Remove(@a) = false, want true")
	}
	if _, ok := r.Get("@a"); ok {
		t.Fatal("@a still present after Remove")
	}
}

func TestAllOrderedByCountDesc(t *testing.T) {
	t.Parallel()
	r := NewRegistry(
		New("@low", "", 5, ""),
		New("@high", "", 900, ""),
		New("@mid", "", 300, ""),
		New("@tie_b", "", 300, ""),
	)
	var names []string
	for _, c := range r.All() {
		names = append(names, c.Name)
	}
	want := []string{"@high", "@mid", "@tie_b", "@low"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("All() order = %v, want %v", names, want)
	}
}

func TestRangeNamesHalfOpen(t *testing.T) {
	t.Parallel()
	r := NewRegistry(
		New("@a", "", 0, ""),
		New("@b", "", 499, ""),
		New("@c", "", 500, ""),
		New("@d", "", 250, ""),
		New("@e", "", 1000, ""),
	)

	tests := []struct {
		name      string
		low, high int
		want      []string
	}{
		{name: "0_500", low: 0, high: 500, want: []string{"@b", "@d", "@a"}},
		{name: "500_1000", low: 500, high: 1000, want: []string{"@c"}},
		{name: "1000_plus", low: 1000, high: 1000000, want: []string{"@e"}},
		{name: "empty", low: 2000, high: 3000, want: []string{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := r.RangeNames(tt.low, tt.high)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("RangeNames(%d,%d) = %v, want %v", tt.low, tt.high, got, tt.want)
			}
			list := r.RangeList(tt.low, tt.high)
			if len(list) != len(tt.want) {
				t.Fatalf("RangeList len = %d, want %d", len(list), len(tt.want))
			}
		})
	}
}

type recordingArchiver struct {
	got []Channel
	err error
}

func (a *recordingArchiver) Archive(_ context.Context, cs []Channel) error {
	a.got = cs
	return a.err
}

func TestArchiveAndClear(t *testing.T) {
	t.Parallel()
	r := NewRegistry(New("@a", "", 1, StageNew), New("@b", "", 2, StageShared))

	a := &recordingArchiver{}
	if err := r.ArchiveAndClear(context.Background(), a); err != nil {
		t.Fatalf("ArchiveAndClear: %v", err)
	}
	if len(a.got) != 2 {
		t.Fatalf("archived %d channels, want 2", len(a.got))
	}
	if r.Len() != 0 {
		t.Fatalf("registry not cleared: len=%d", r.Len())
	}
}

func TestArchiveFailureKeepsRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry(New("@a", "", 1, StageNew))
	a := &recordingArchiver{err: errors.New("boom")}
	if err := r.ArchiveAndClear(context.Background(), a); err == nil {
		t.Fatal("expected archive error")
	}
	if r.Len() != 1 {
		t.Fatalf("registry cleared despite archive failure")
	}
}

func TestStageHashtag(t *testing.T) {
	t.Parallel()
	cases := map[Stage]string{
		StageNew:       "#new",
		StageConfirmed: "#confirm",
		StageShared:    "#shared",
		StageNone:      "",
	}
	for st, want := range cases {
		if got := st.Hashtag(); got != want {
			t.Fatalf("%q.Hashtag() = %q, want %q", st, got, want)
		}
	}
}

func TestChannelJSONDate(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(New("@a", "", 1, StageNew))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "date") {
		t.Fatalf("unset date encoded: %s", b)
	}

	c := New("@a", "", 1, StageNew)
	c.Date = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	b, err = json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var back Channel
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Date.Equal(c.Date) {
		t.Fatalf("date = %v, want %v", back.Date, c.Date)
	}
}
