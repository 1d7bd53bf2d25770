package promo

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"crosspromo/internal/channel"
	"crosspromo/internal/distribute"
)

// Range is a half-open subscriber count band [Low, High).
type Range struct {
	Name string
	Low  int
	High int
}

// unbounded closes the open-ended bands; no member count reaches it.
const unbounded = math.MaxInt

var (
	RangeAll = Range{Name: "all", Low: 0, High: unbounded}

	ranges = []Range{
		{Name: "0_500", Low: 0, High: 500},
		{Name: "500_1000", Low: 500, High: 1000},
		{Name: "1000_5000", Low: 1000, High: 5000},
		{Name: "5000_plus", Low: 5000, High: unbounded},
	}
)

// Ranges returns the fixed count bands, smallest first.
func Ranges() []Range { return append([]Range(nil), ranges...) }

// LookupRange finds a band by name; "all" covers every band.
func LookupRange(name string) (Range, bool) {
	name = strings.TrimSpace(name)
	if name == RangeAll.Name {
		return RangeAll, true
	}
	for _, r := range ranges {
		if r.Name == name {
			return r, true
		}
	}
	return Range{}, false
}

func (r Range) listTag() string {
	if r.Name == RangeAll.Name {
		return r.Name
	}
	return r.Name + "_list"
}

func (r Range) namesTag() string {
	if r.Name == RangeAll.Name {
		return r.Name
	}
	return r.Name + "_names"
}

type View int

const (
	ViewList View = iota
	ViewNames
	ViewConfirmed
	ViewNotConfirmed
)

// Show replies with one view of the channels in r.
func (s *Service) Show(ctx context.Context, r Range, v View, to Replier) error {
	return reply(ctx, to, s.Render(r, v))
}

// Render builds the text of a view.
func (s *Service) Render(r Range, v View) string {
	cs := s.reg.RangeList(r.Low, r.High)
	switch v {
	case ViewNames:
		return namesText(names(cs), fmt.Sprintf("#%s #%dchannels", r.namesTag(), len(cs)))
	case ViewConfirmed:
		got := filter(cs, func(c channel.Channel) bool { return c.Stage == channel.StageConfirmed })
		return namesText(names(got), fmt.Sprintf("#%s #confirmed #%dchannels", r.listTag(), len(got)))
	case ViewNotConfirmed:
		got := filter(cs, func(c channel.Channel) bool { return c.Stage != channel.StageConfirmed })
		return namesText(names(got), fmt.Sprintf("#%s #notconfirmed #%dchannels", r.listTag(), len(got)))
	default:
		var b strings.Builder
		for _, c := range cs {
			fmt.Fprintf(&b, "\n%s %s (%d) \n%s\n", c.Stage.Hashtag(), c.Name, c.Count, c.Description)
		}
		fmt.Fprintf(&b, "\n#%s #%dchannels", r.listTag(), len(cs))
		return b.String()
	}
}

func namesText(ns []string, footer string) string {
	var b strings.Builder
	for _, n := range ns {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func names(cs []channel.Channel) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func filter(cs []channel.Channel, keep func(channel.Channel) bool) []channel.Channel {
	out := make([]channel.Channel, 0, len(cs))
	for _, c := range cs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// FinalUsage is the reply for a malformed final request.
const FinalUsage = "<command> <no_of_list> <emojis...>"

// Final splits the confirmed channels of r into balanced lists. args is the
// list count followed by one label per list.
func (s *Service) Final(ctx context.Context, r Range, args []string, to Replier) error {
	if len(args) < 1 {
		return reply(ctx, to, FinalUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return reply(ctx, to, FinalUsage)
	}
	labels := args[1:]
	if len(labels) < n {
		return reply(ctx, to, fmt.Sprintf("specified [%d] lists, but only [%d] emojis", n, len(labels)))
	}

	confirmed := s.confirmed(r)
	if err := reply(ctx, to, fmt.Sprintf("splitting [%d] channels into [%d] lists", len(confirmed), n)); err != nil {
		return err
	}
	texts, err := s.finalTexts(r, confirmed, n, labels)
	if err != nil {
		return reply(ctx, to, err.Error())
	}
	for _, t := range texts {
		if err := reply(ctx, to, t); err != nil {
			return err
		}
	}
	return nil
}

// FinalTexts renders the final lists of r without replying.
func (s *Service) FinalTexts(r Range, n int, labels []string) ([]string, error) {
	return s.finalTexts(r, s.confirmed(r), n, labels)
}

func (s *Service) confirmed(r Range) []channel.Channel {
	return filter(s.reg.RangeList(r.Low, r.High), func(c channel.Channel) bool {
		return c.Stage == channel.StageConfirmed
	})
}

func (s *Service) finalTexts(r Range, ranked []channel.Channel, n int, labels []string) ([]string, error) {
	lists, err := distribute.Distribute(ranked, n, labels)
	if err != nil {
		return nil, err
	}
	cfg := s.Config()
	out := make([]string, 0, len(lists))
	for i, l := range lists {
		var b strings.Builder
		b.WriteString(cfg.ListHeader)
		for _, e := range l.Entries {
			fmt.Fprintf(&b, "%s %s\n%s\n\n", e.Label, e.Channel.Name, e.Channel.Description)
		}
		b.WriteString(cfg.ListFooter)
		fmt.Fprintf(&b, "\n#%s #list%d #%dchannels #%dreach", r.listTag(), i+1, l.Size(), l.Reach())
		out = append(out, b.String())
	}
	return out, nil
}

// WelcomeText lists the operator grammar and every slash command.
func WelcomeText() string {
	var b strings.Builder
	b.WriteString("Hey, welcome \n\n")
	b.WriteString("#new <name> <desc>\n#confirm <name> \n#shared <name> \n#remove <name> \n\n")
	b.WriteString("/list_all \n/list_all_names \n")
	for _, r := range ranges {
		b.WriteString("\n")
		for _, suffix := range []string{"", "_names", "_confirmed", "_notconfirmed", "_final"} {
			fmt.Fprintf(&b, "/list_%s%s \n", r.Name, suffix)
		}
	}
	b.WriteString("\n/refresh \n/reload \n/clean_channels \n/help \n")
	return b.String()
}
