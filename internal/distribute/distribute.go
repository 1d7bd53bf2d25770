// Package distribute splits a ranked set of channels into N promotional lists
// with roughly equal reach.
//
// An optimal balanced partition is NP-hard. Input here is short and already
// sorted by count, so a snake (boustrophedon) assignment is used instead:
// consecutive chunks of N channels are dealt across the lists, alternating
// direction every chunk. Rank 1 lands on list 0, rank N on list N-1, rank N+1
// back on list N-1, and so on.
package distribute

import (
	"errors"
	"fmt"

	"crosspromo/internal/channel"
)

var (
	ErrInsufficientLabels = errors.New("insufficient labels")
	ErrInvalidListCount   = errors.New("list count must be >= 1")
)

// Entry is one channel placed on a list.
type Entry struct {
	Label   string
	Channel channel.Channel
}

// List is one output list in assignment order.
type List struct {
	Label   string
	Entries []Entry
}

func (l List) Size() int { return len(l.Entries) }

// Reach is the sum of subscriber counts on the list.
func (l List) Reach() int {
	total := 0
	for _, e := range l.Entries {
		total += e.Channel.Count
	}
	return total
}

func (l List) Channels() []channel.Channel {
	out := make([]channel.Channel, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Channel)
	}
	return out
}

// Distribute deals ranked (count-descending) channels across n lists.
// labels must hold at least n entries; list i is tagged with labels[i].
func Distribute(ranked []channel.Channel, n int, labels []string) ([]List, error) {
	if n < 1 {
		return nil, ErrInvalidListCount
	}
	if len(labels) < n {
		return nil, fmt.Errorf("%w: specified %d lists, got %d labels", ErrInsufficientLabels, n, len(labels))
	}

	lists := make([]List, n)
	for i := range lists {
		lists[i].Label = labels[i]
	}

	reverse := false
	for start := 0; start < len(ranked); start += n {
		end := min(start+n, len(ranked))
		for i, c := range ranked[start:end] {
			dst := i
			if reverse {
				dst = n - 1 - i
			}
			lists[dst].Entries = append(lists[dst].Entries, Entry{Label: lists[dst].Label, Channel: c})
		}
		reverse = !reverse
	}
	return lists, nil
}
