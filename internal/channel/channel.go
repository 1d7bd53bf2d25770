// Package channel holds the channel record and the in-memory registry that
// stores registered channels keyed by their canonical handle.
package channel

import (
	"strings"
	"time"
)

// Stage is the lifecycle classification of a registered channel.
// The zero value means "registered, not yet classified".
type Stage string

const (
	StageNone      Stage = ""
	StageNew       Stage = "new"
	StageConfirmed Stage = "confirmed"
	StageShared    Stage = "shared"
)

// Hashtag renders the stage the way operators type it.
func (s Stage) Hashtag() string {
	switch s {
	case StageNew:
		return "#new"
	case StageConfirmed:
		return "#confirm"
	case StageShared:
		return "#shared"
	default:
		return ""
	}
}

// Channel is a registered channel.
//
// Date is bookkeeping only; no listing or distribution logic reads it.
type Channel struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Count       int       `json:"count"`
	Stage       Stage     `json:"stage,omitempty"`
	Date        time.Time `json:"date,omitzero"`
}

// New builds a normalized channel record.
func New(name, desc string, count int, stage Stage) Channel {
	return Channel{
		Name:        name,
		Description: desc,
		Count:       count,
		Stage:       stage,
	}.Normalize()
}

// Normalize trims name and description and clamps the count at zero.
func (c Channel) Normalize() Channel {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	c.Stage = Stage(strings.TrimSpace(string(c.Stage)))
	if c.Count < 0 {
		c.Count = 0
	}
	return c
}

// Reach sums subscriber counts.
func Reach(cs []Channel) int {
	total := 0
	for _, c := range cs {
		total += c.Count
	}
	return total
}
