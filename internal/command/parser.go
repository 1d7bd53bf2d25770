// Package command turns free-form operator text into lifecycle commands.
//
// Parsing happens in three steps:
//
//  1. every hashtag token is lower-cased (hashtags are case-insensitive);
//  2. the text is classified by the first of #new, #confirm, #shared, #remove
//     it contains (in that order) and split into sub-messages;
//  3. each sub-message is matched against the per-command pattern.
//
// Only one command type is recognized per message. A message mixing #new and
// #confirm is handled entirely as a #new batch. Operators rely on this, so it
// must stay that way.
package command

import (
	"regexp"
	"strings"
)

// Action is a lifecycle transition requested by the operator.
type Action int

const (
	ActionNone Action = iota
	ActionNew
	ActionConfirm
	ActionShared
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionNew:
		return "new"
	case ActionConfirm:
		return "confirm"
	case ActionShared:
		return "shared"
	case ActionRemove:
		return "remove"
	default:
		return "none"
	}
}

// Token returns the hashtag that introduces the action.
func (a Action) Token() string {
	switch a {
	case ActionNew:
		return "#new"
	case ActionConfirm:
		return "#confirm"
	case ActionShared:
		return "#shared"
	case ActionRemove:
		return "#remove"
	default:
		return ""
	}
}

// Command is one parsed operator instruction.
// Description is only populated for #new and #confirm.
type Command struct {
	Action      Action
	Handle      string
	Description string
}

// priority is the classification order. #list is reserved syntax and is
// intentionally absent.
var priority = []Action{ActionNew, ActionConfirm, ActionShared, ActionRemove}

var (
	reHashtag = regexp.MustCompile(`#\w+`)
	reHandle  = regexp.MustCompile(`@\w+`)
)

type pattern struct {
	action   Action
	re       *regexp.Regexp
	withDesc bool
}

var patterns = []pattern{
	{action: ActionNew, re: regexp.MustCompile(`^.*(#new).*(@\w+)(.*)`), withDesc: true},
	{action: ActionConfirm, re: regexp.MustCompile(`^.*(#confirm).*(@\w+)(.*)`), withDesc: true},
	{action: ActionShared, re: regexp.MustCompile(`^.*(#shared).*(@\w+)(.*)`)},
	{action: ActionRemove, re: regexp.MustCompile(`^.*(#remove).*(@\w+)(.*)`)},
}

// Normalize lower-cases every hashtag token and leaves the rest untouched.
func Normalize(text string) string {
	return reHashtag.ReplaceAllStringFunc(text, strings.ToLower)
}

// Classify reports which command type governs the whole message.
func Classify(normalized string) Action {
	for _, a := range priority {
		if strings.Contains(normalized, a.Token()) {
			return a
		}
	}
	return ActionNone
}

// Split normalizes text and breaks it into sub-messages, one per command.
func Split(text string) []string {
	text = Normalize(text)

	switch a := Classify(text); a {
	case ActionNew:
		var out []string
		for _, frag := range strings.Split(text, a.Token()) {
			if frag == "" {
				continue
			}
			out = append(out, a.Token()+" "+frag)
		}
		return out
	case ActionConfirm, ActionShared, ActionRemove:
		handles := reHandle.FindAllString(text, -1)
		out := make([]string, 0, len(handles))
		for _, h := range handles {
			out = append(out, a.Token()+" "+h)
		}
		return out
	default:
		return []string{text}
	}
}

// Parse matches one sub-message against the command patterns.
// It returns false when nothing matches; such text is ignored by callers.
func Parse(sub string) (Command, bool) {
	line := strings.Join(strings.Split(sub, "\n"), " ")
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		cmd := Command{Action: p.action, Handle: strings.TrimSpace(m[2])}
		if p.withDesc {
			cmd.Description = strings.TrimSpace(m[3])
		}
		return cmd, true
	}
	return Command{}, false
}

// ParseMessage runs Split and Parse over a whole incoming message and
// returns the recognized commands in order.
func ParseMessage(text string) []Command {
	subs := Split(text)
	out := make([]Command, 0, len(subs))
	for _, s := range subs {
		if cmd, ok := Parse(s); ok {
			out = append(out, cmd)
		}
	}
	return out
}
