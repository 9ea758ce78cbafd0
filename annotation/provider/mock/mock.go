// Package mock provides a scripted provider.Completer for tests.
//
// Example:
//
//	c := &mock.Completer{Responses: []mock.Response{
//	    {Err: errors.New("timeout")},
//	    {Text: `{"Sr No.": 1, "Speaker": "Ross", "Role": "Neutral", "Justification": "..."}`},
//	}}
package mock

import (
	"context"
	"errors"
	"sync"
)

// ErrExhausted is returned once the script has no responses left and Repeat is false.
var ErrExhausted = errors.New("mock: no scripted responses left")

// Response is one scripted reply.
type Response struct {
	Text string
	Err  error
}

// Call records one invocation of Complete.
type Call struct {
	Prompt           string
	ResponseTemplate string
}

// Completer replays Responses in order.
type Completer struct {
	mu sync.Mutex

	Responses []Response

	// Repeat keeps returning the last response after the script runs out.
	Repeat bool

	// Calls records every invocation in order.
	Calls []Call
}

func (c *Completer) Complete(ctx context.Context, prompt, responseTemplate string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.Calls = append(c.Calls, Call{Prompt: prompt, ResponseTemplate: responseTemplate})

	i := len(c.Calls) - 1
	if i >= len(c.Responses) {
		if !c.Repeat || len(c.Responses) == 0 {
			return "", ErrExhausted
		}
		i = len(c.Responses) - 1
	}
	r := c.Responses[i]
	return r.Text, r.Err
}

// CallCount returns the number of Complete calls so far.
func (c *Completer) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
