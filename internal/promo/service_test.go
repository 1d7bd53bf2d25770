package promo

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"crosspromo/internal/channel"
	"crosspromo/internal/command"
	"crosspromo/internal/metadata"
	"crosspromo/internal/storage"
	logx "crosspromo/pkg/logx"
)

type recorder struct {
	mu  sync.Mutex
	out []string
}

func (r *recorder) Reply(_ context.Context, text string) error {
	r.mu.Lock()
	r.out = append(r.out, text)
	r.mu.Unlock()
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.out...)
}

// fakeProvider answers from a table; unknown handles fail.
type fakeProvider map[string]metadata.Info

func (f fakeProvider) Lookup(_ context.Context, handle string) (metadata.Info, error) {
	info, ok := f[handle]
	if !ok {
		return metadata.Info{}, metadata.ErrUnavailable
	}
	return info, nil
}

func newService(t *testing.T, p metadata.Provider, initial ...channel.Channel) (*Service, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	svc := New(channel.NewRegistry(initial...), mem, p, Config{}, logx.Nop())
	return svc, mem
}

func TestLifecycleToFinalList(t *testing.T) {
	t.Parallel()
	svc, mem := newService(t, fakeProvider{"@a": {Handle: "@a", Count: 10}})
	rec := &recorder{}
	ctx := context.Background()

	if err := svc.HandleText(ctx, "#new @a my channel", rec); err != nil {
		t.Fatalf("HandleText new: %v", err)
	}
	if err := svc.HandleText(ctx, "#Confirm @a", rec); err != nil {
		t.Fatalf("HandleText confirm: %v", err)
	}
	c, ok := svc.Registry().Get("@a")
	if !ok || c.Stage != channel.StageConfirmed || c.Count != 10 || c.Description != "my channel" {
		t.Fatalf("record = %+v, %v", c, ok)
	}
	if c.Date.IsZero() {
		t.Fatal("registration date not set")
	}
	if mem.Writes != 2 {
		t.Fatalf("snapshot writes = %d, want 2", mem.Writes)
	}

	if err := svc.Final(ctx, Range{Name: "x", Low: 0, High: 100}, []string{"1", "★"}, rec); err != nil {
		t.Fatalf("Final: %v", err)
	}
	got := rec.texts()
	if len(got) != 4 {
		t.Fatalf("replies = %q", got)
	}
	if got[0] != "#added @a" || got[1] != "#confirmed @a" || got[2] != "splitting [1] channels into [1] lists" {
		t.Fatalf("replies = %q", got[:3])
	}
	list := got[3]
	if !strings.HasPrefix(list, DefaultListHeader+"★ @a\nmy channel\n\n"+DefaultListFooter) {
		t.Fatalf("list body = %q", list)
	}
	if !strings.HasSuffix(list, "\n#x_list #list1 #1channels #10reach") {
		t.Fatalf("list tag = %q", list)
	}
}

func TestNotFoundReplies(t *testing.T) {
	t.Parallel()
	svc, mem := newService(t, nil)
	rec := &recorder{}
	ctx := context.Background()

	for _, text := range []string{"#confirm @zz", "#shared @zz", "#remove @zz"} {
		if err := svc.HandleText(ctx, text, rec); err != nil {
			t.Fatalf("HandleText(%q): %v", text, err)
		}
	}
	want := []string{"#notfound @zz", "#notfound @zz", "#notfound @zz"}
	if got := rec.texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	if mem.Writes != 0 || svc.Registry().Len() != 0 {
		t.Fatalf("writes = %d len = %d, want no mutation", mem.Writes, svc.Registry().Len())
	}
}

func TestSharedAndRemove(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, nil, channel.New("@a", "", 5, channel.StageConfirmed))
	rec := &recorder{}
	ctx := context.Background()

	if err := svc.Dispatch(ctx, command.Command{Action: command.ActionShared, Handle: "@a"}, rec); err != nil {
		t.Fatal(err)
	}
	if c, _ := svc.Registry().Get("@a"); c.Stage != channel.StageShared || c.Count != 5 {
		t.Fatalf("record = %+v", c)
	}
	if err := svc.Dispatch(ctx, command.Command{Action: command.ActionRemove, Handle: "@a"}, rec); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.Registry().Get("@a"); ok {
		t.Fatal("@a still registered after remove")
	}
	if got := rec.texts(); !reflect.DeepEqual(got, []string{"#shared @a", "#removed @a"}) {
		t.Fatalf("replies = %q", got)
	}
}

func TestLookupFailureKeepsStaleCount(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, fakeProvider{}, channel.New("@b", "old", 50, channel.StageConfirmed))
	rec := &recorder{}

	if err := svc.HandleText(context.Background(), "#new @b fresh desc", rec); err != nil {
		t.Fatal(err)
	}
	c, _ := svc.Registry().Get("@b")
	if c.Count != 50 || c.Stage != channel.StageNew || c.Description != "fresh desc" {
		t.Fatalf("record = %+v", c)
	}
	if got := rec.texts(); len(got) != 1 || got[0] != "#added @b" {
		t.Fatalf("replies = %q", got)
	}
}

func TestCanonicalHandle(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, fakeProvider{"@alpha": {Handle: "@Alpha", Count: 7}})
	rec := &recorder{}
	if err := svc.HandleText(context.Background(), "#new @alpha", rec); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.Registry().Get("@Alpha"); !ok {
		t.Fatal("channel not stored under canonical handle")
	}
	if got := rec.texts(); got[0] != "#added @Alpha" {
		t.Fatalf("reply = %q", got[0])
	}
}

func TestBatchMessageInOrder(t *testing.T) {
	t.Parallel()
	svc, mem := newService(t, nil)
	rec := &recorder{}
	if err := svc.HandleText(context.Background(), "#new @a one\n#new @b two", rec); err != nil {
		t.Fatal(err)
	}
	if got := rec.texts(); !reflect.DeepEqual(got, []string{"#added @a", "#added @b"}) {
		t.Fatalf("replies = %q", got)
	}
	if mem.Writes != 2 {
		t.Fatalf("writes = %d, want 2", mem.Writes)
	}
}

func TestHandleTextStopsOnCancel(t *testing.T) {
	t.Parallel()
	mem := storage.NewMemory()
	svc := New(nil, mem, nil, Config{CommandDelay: 1e9}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	rec := ReplyFunc(func(context.Context, string) error {
		cancel()
		return nil
	})
	err := svc.HandleText(ctx, "#new @a #new @b", rec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if svc.Registry().Len() != 1 {
		t.Fatalf("len = %d, want only the first command applied", svc.Registry().Len())
	}
}

func TestHandleTextContinuesAfterReplyFailure(t *testing.T) {
	t.Parallel()
	mem := storage.NewMemory()
	svc := New(nil, mem, nil, Config{CommandDelay: 1e6}, logx.Nop())
	sendErr := errors.New("telegram 429")
	var calls int
	rec := ReplyFunc(func(context.Context, string) error {
		calls++
		if calls == 1 {
			return sendErr
		}
		return nil
	})

	err := svc.HandleText(context.Background(), "#new @a d1\n#new @b d2", rec)
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v, want the failed reply", err)
	}
	for _, name := range []string{"@a", "@b"} {
		if _, ok := svc.Registry().Get(name); !ok {
			t.Fatalf("%s not registered", name)
		}
	}
	if calls != 2 || mem.Writes != 2 {
		t.Fatalf("replies = %d writes = %d, want 2 and 2", calls, mem.Writes)
	}
}

func TestUnparsableTextIgnored(t *testing.T) {
	t.Parallel()
	svc, mem := newService(t, nil)
	rec := &recorder{}
	if err := svc.HandleText(context.Background(), "hello there #list", rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.texts()) != 0 || mem.Writes != 0 {
		t.Fatalf("replies = %q writes = %d", rec.texts(), mem.Writes)
	}
}

func TestReload(t *testing.T) {
	t.Parallel()
	svc, mem := newService(t, nil)
	if err := mem.Store(context.Background(), []channel.Channel{channel.New("@x", "", 3, channel.StageNew)}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := svc.Registry().Get("@x"); !ok {
		t.Fatal("reload did not restore @x")
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	commands []string
	lookups  [2]int
	writes   [2]int
}

func (c *countingRecorder) Command(action, outcome string) {
	c.mu.Lock()
	c.commands = append(c.commands, action+":"+outcome)
	c.mu.Unlock()
}

func (c *countingRecorder) Lookup(ok bool) {
	c.mu.Lock()
	if ok {
		c.lookups[1]++
	} else {
		c.lookups[0]++
	}
	c.mu.Unlock()
}

func (c *countingRecorder) SnapshotWrite(ok bool) {
	c.mu.Lock()
	if ok {
		c.writes[1]++
	} else {
		c.writes[0]++
	}
	c.mu.Unlock()
}

func TestRecorderSeesOutcomes(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, fakeProvider{"@a": {Handle: "@a", Count: 1}})
	cr := &countingRecorder{}
	svc.SetRecorder(cr)
	ctx := context.Background()

	for _, text := range []string{"#new @a", "#confirm @zz", "#remove @a"} {
		if err := svc.HandleText(ctx, text, &recorder{}); err != nil {
			t.Fatalf("HandleText(%q): %v", text, err)
		}
	}
	want := []string{"new:ok", "confirm:notfound", "remove:ok"}
	if !reflect.DeepEqual(cr.commands, want) {
		t.Fatalf("commands = %q, want %q", cr.commands, want)
	}
	if cr.lookups != [2]int{1, 2} {
		t.Fatalf("lookups (fail, ok) = %v", cr.lookups)
	}
	if cr.writes != [2]int{0, 2} {
		t.Fatalf("writes (fail, ok) = %v", cr.writes)
	}
}
