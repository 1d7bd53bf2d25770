package router

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	kit "crosspromo/internal/transport"
	logx "crosspromo/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
	menu []kit.BotCommand
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	f.menu = cmds
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func msgUpdate(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: -1, FromID: from, Text: text}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTokenize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want []string
	}{
		{in: `/list_0_500_final 2 "⭐ x" '🔥'`, want: []string{"/list_0_500_final", "2", "⭐ x", "🔥"}},
		{in: `a\ b  c`, want: []string{"a b", "c"}},
		{in: `x '' "it's"`, want: []string{"x", "", "it's"}},
		{in: "  ", want: nil},
	}
	for _, tt := range tests {
		if got := tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoutingAndAccess(t *testing.T) {
	fa := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), fa, []int64{42})

	var (
		mu    sync.Mutex
		calls []string
		texts []string
	)
	record := func(ctx context.Context, req *Request) error {
		mu.Lock()
		calls = append(calls, req.Command+"|"+strings.Join(req.Args, ","))
		mu.Unlock()
		return nil
	}
	m.SetRegistry(context.Background(), []Command{
		{Route: "list 0_500", Access: AccessOwnerOnly, Handle: record},
		{Route: "list 0_500 final", Access: AccessOwnerOnly, Handle: record},
		{Route: "clean_channels", Access: AccessOwnerOnly, Handle: record},
		{Route: "fail", Access: AccessOwnerOnly, Handle: func(context.Context, *Request) error { return errors.New("boom") }},
	})
	m.SetTextHandler(func(ctx context.Context, req *Request) error {
		mu.Lock()
		texts = append(texts, req.Text)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 16)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, updates)
		close(done)
	}()

	updates <- msgUpdate(42, "/list_0_500_final 2 a b")
	updates <- msgUpdate(42, "/list 0_500")
	updates <- msgUpdate(7, "/clean_channels")
	updates <- msgUpdate(7, "#new @spam")
	updates <- msgUpdate(42, "#new @a first")
	updates <- msgUpdate(42, "#confirm @a")
	updates <- msgUpdate(42, "/nope")
	updates <- msgUpdate(42, "/fail")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 2 && len(texts) == 2 && len(fa.messages()) >= 2
	})
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	got := map[string]bool{}
	for _, c := range calls {
		got[c] = true
	}
	if !got["list 0_500 final|2,a,b"] || !got["list 0_500|"] {
		t.Fatalf("calls = %q", calls)
	}
	if !reflect.DeepEqual(texts, []string{"#new @a first", "#confirm @a"}) {
		t.Fatalf("texts = %q", texts)
	}
	joined := strings.Join(fa.messages(), "\n")
	if !strings.Contains(joined, "unknown command") || !strings.Contains(joined, "error: boom") {
		t.Fatalf("replies = %q", fa.messages())
	}
}

func TestMenuIncludesShortcuts(t *testing.T) {
	t.Parallel()
	root := newRoot()
	cmds := []Command{
		{Route: "list all", Description: "all channels"},
		{Route: "list 0_500 names", Description: "names"},
		{Route: "refresh", Description: "refresh counts"},
	}
	for _, c := range cmds {
		root.add(splitRoute(c.Route), c)
	}
	menu := buildTelegramMenuCommands(root, cmds)
	names := map[string]string{}
	for _, c := range menu {
		names[c.Command] = c.Description
	}
	for _, want := range []string{"list", "refresh", "list_all", "list_0_500_names"} {
		if _, ok := names[want]; !ok {
			t.Fatalf("menu missing %q: %+v", want, menu)
		}
	}
	if names["refresh"] != "refresh counts" {
		t.Fatalf("refresh desc = %q", names["refresh"])
	}
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Clean-Channels": "clean_channels",
		"5000 plus":      "cmd_5000_plus",
		"__x__":          "x",
		"!!":             "",
	}
	for in, want := range cases {
		if got := sanitizeTelegramCommand(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHelpText(t *testing.T) {
	t.Parallel()
	m := NewCommandManager(logx.Nop(), &fakeAdapter{}, []int64{1})
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry(context.Background(), []Command{
		{Route: "list 0_500 final", Description: "snake lists", Usage: "/list_0_500_final <n> <labels...>", Handle: noop},
		{Route: "list 0_500", Description: "plain view", Handle: noop},
		{Route: "clean_channels", Aliases: []string{"clean"}, Description: "archive and clear", Handle: noop},
	})

	top := m.helpText(nil)
	for _, want := range []string{"<code>/list_0_500_final</code> snake lists", "<code>/clean_channels</code>", "<code>/help</code>", "Registry edits"} {
		if !strings.Contains(top, want) {
			t.Fatalf("top help missing %q:\n%s", want, top)
		}
	}

	leaf := m.helpText([]string{"list_0_500_final"})
	if !strings.Contains(leaf, "<code>/list 0_500 final</code>") || !strings.Contains(leaf, "&lt;n&gt;") {
		t.Fatalf("leaf help:\n%s", leaf)
	}
	group := m.helpText([]string{"list"})
	if !strings.Contains(group, "/list_0_500</code> plain view") || strings.Contains(group, "Registry edits") {
		t.Fatalf("group help:\n%s", group)
	}
	if alias := m.helpText([]string{"clean"}); !strings.Contains(alias, "archive and clear") {
		t.Fatalf("alias help:\n%s", alias)
	}
	if unknown := m.helpText([]string{"nope"}); !strings.Contains(unknown, "Unknown command") {
		t.Fatalf("unknown help:\n%s", unknown)
	}
}
