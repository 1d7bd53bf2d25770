package command

import (
	"reflect"
	"testing"
)

func TestSplitNewBatch(t *testing.T) {
	t.Parallel()
	got := Split("#new @a desc1\n#new @b desc2")
	want := []string{"#new  @a desc1\n", "#new  @b desc2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
}

func TestParseMessageNewBatch(t *testing.T) {
	t.Parallel()
	got := ParseMessage("#new @a desc1\n#new @b desc2")
	want := []Command{
		{Action: ActionNew, Handle: "@a", Description: "desc1"},
		{Action: ActionNew, Handle: "@b", Description: "desc2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseMessage = %+v, want %+v", got, want)
	}
}

func TestMixedMessageUsesPriority(t *testing.T) {
	t.Parallel()
	got := ParseMessage("#confirm #shared @x")
	want := []Command{{Action: ActionConfirm, Handle: "@x"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseMessage = %+v, want %+v", got, want)
	}

	// #new wins over everything else: the leading fragment is re-prefixed
	// with #new as well, so @a is registered rather than confirmed.
	got = ParseMessage("#confirm @a #new @b fresh")
	want = []Command{
		{Action: ActionNew, Handle: "@a"},
		{Action: ActionNew, Handle: "@b", Description: "fresh"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseMessage(mixed new) = %+v, want %+v", got, want)
	}
}

func TestHashtagsAreCaseInsensitive(t *testing.T) {
	t.Parallel()
	got := ParseMessage("#CONFIRM @Alpha @Beta")
	want := []Command{
		{Action: ActionConfirm, Handle: "@Alpha"},
		{Action: ActionConfirm, Handle: "@Beta"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseMessage = %+v, want %+v", got, want)
	}
	if n := Normalize("#NeW @MiXed Text"); n != "#new @MiXed Text" {
		t.Fatalf("Normalize = %q", n)
	}
}

func TestSplitPerHandle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "remove", in: "#remove @a, @b and @c", want: []string{"#remove @a", "#remove @b", "#remove @c"}},
		{name: "shared", in: "@a @b #Shared", want: []string{"#shared @a", "#shared @b"}},
		{name: "no handles", in: "#confirm nothing here", want: []string{}},
		{name: "free text", in: "hello there", want: []string{"hello there"}},
		{name: "list passthrough", in: "#LIST all", want: []string{"#list all"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Split(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDropsUnrecognized(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"hello there", "#list all", "#new without handle", "#remove"} {
		if cmd, ok := Parse(s); ok {
			t.Fatalf("Parse(%q) = %+v, want no match", s, cmd)
		}
	}
	if got := ParseMessage("just chatting"); len(got) != 0 {
		t.Fatalf("ParseMessage(free text) = %+v, want none", got)
	}
}

func TestParseDescriptionOnlyForNewAndConfirm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Command
	}{
		{in: "#new @a  a fine channel ", want: Command{Action: ActionNew, Handle: "@a", Description: "a fine channel"}},
		{in: "#confirm @a trailing", want: Command{Action: ActionConfirm, Handle: "@a", Description: "trailing"}},
		{in: "#shared @a trailing", want: Command{Action: ActionShared, Handle: "@a"}},
		{in: "#remove @a trailing", want: Command{Action: ActionRemove, Handle: "@a"}},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if !ok {
			t.Fatalf("Parse(%q) did not match", tt.in)
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseFoldsNewlines(t *testing.T) {
	t.Parallel()
	got, ok := Parse("#new @a line one\nline two")
	if !ok {
		t.Fatal("expected match")
	}
	if got.Description != "line one line two" {
		t.Fatalf("Description = %q", got.Description)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := map[string]Action{
		"#new @a":            ActionNew,
		"#remove #shared @a": ActionShared,
		"#remove @a":         ActionRemove,
		"plain":              ActionNone,
	}
	for in, want := range cases {
		if got := Classify(in); got != want {
			t.Fatalf("Classify(%q) = %v, want %v", in, got, want)
		}
	}
}
