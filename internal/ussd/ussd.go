// Package ussd implements the wire conventions of the short-code channel:
// the accumulated input trail and the CON/END reply prefixes.
package ussd

import "strings"

// Separator joins submitted tokens in the accumulated input trail.
const Separator = "*"

// Tokens splits a trail into the ordered sequence of submitted tokens.
// An empty trail yields no tokens.
func Tokens(trail string) []string {
	if trail == "" {
		return nil
	}
	return strings.Split(trail, Separator)
}

// Latest returns the most recent token of a trail, or "" for an empty
// trail. Only the latest token is re-examined per request; the rest of the
// trail has already been consumed by earlier requests.
func Latest(trail string) string {
	tokens := Tokens(trail)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// Reply is a single outbound payload. End distinguishes a terminal END
// response from a CON continuation.
type Reply struct {
	Body string
	End  bool
}

// Con builds a continuation reply.
func Con(body string) Reply {
	return Reply{Body: body}
}

// End builds a terminal reply.
func End(body string) Reply {
	return Reply{Body: body, End: true}
}

// Render produces the wire form of the reply.
func (r Reply) Render() string {
	if r.End {
		return "END " + r.Body
	}
	return "CON " + r.Body
}
