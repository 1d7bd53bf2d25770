package router

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	kit "crosspromo/internal/transport"
	logx "crosspromo/pkg/logx"
)

// Request is one routed message. For free text Command is "text" and
// Args is empty.
type Request struct {
	ID      string
	Chat    kit.ChatTarget
	FromID  int64
	Command string // route, e.g. "list 0_500 final"
	Args    []string
	Text    string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends plain text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

var (
	reqEpoch = strconv.FormatInt(time.Now().Unix(), 36)
	reqSeq   atomic.Uint64
)

// newRequestID is unique per process: start time plus a counter, base 36.
func newRequestID() string {
	return reqEpoch + "-" + strconv.FormatUint(reqSeq.Add(1), 36)
}

// tokenize splits a command line on whitespace. Single or double quotes
// group a token and are dropped from it; a backslash escapes the next rune:
//
//	/list_0_500_final 2 "⭐ x" '🔥'  ->  {"/list_0_500_final", "2", "⭐ x", "🔥"}
func tokenize(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		escaped bool
		started bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped, started = true, true
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote, started = r, true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		out = append(out, cur.String())
	}
	return out
}
