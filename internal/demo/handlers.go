// Package demo provides example onNewChat/onMessage handlers,
// wired in cmd/server/main.go the way original_source/apps/server/main.py
// wires its own on.message/on.new_chat handlers.
package demo

import (
	"context"
	"fmt"

	"bubblestream/internal/bubble"
	"bubblestream/internal/runtime"
)

// chunkText splits s into runs of size runes, mirroring the original's
// _chunk_text helper used to simulate token-by-token streaming.
func chunkText(s string, size int) []string {
	r := []rune(s)
	var out []string
	for i := 0; i < len(r); i += size {
		end := i + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[i:end]))
	}
	return out
}

// Greeter holds the greeting text OnNewChat sends at the start of every
// new conversation.
type Greeter struct {
	greeting string
}

func NewGreeter(greeting string) *Greeter {
	if greeting == "" {
		greeting = "Hello! How can I help you today?"
	}
	return &Greeter{greeting: greeting}
}

// OnNewChat greets once per new conversation.
func (g *Greeter) OnNewChat(ctx context.Context, nc runtime.NewChatContext) error {
	tmpl, err := runtime.Bubble("", bubble.WithRole("assistant"), bubble.WithType("text"))
	if err != nil {
		return err
	}
	greeting, err := runtime.Send(ctx, tmpl)
	if err != nil {
		return err
	}
	greeting.Set(g.greeting)
	greeting.Done()
	return nil
}

// echoCounter names each streamed chunk with an increasing counter, the
// Go analogue of the original's _cycle_name closure.
type echoCounter struct{ n int }

func (c *echoCounter) next() string {
	c.n++
	return fmt.Sprintf("%d", c.n)
}

// OnMessage echoes the incoming message back one rune-chunk at a time,
// renaming the bubble on every chunk the way the original's on_message
// calls reply.config(name=...) between stream() calls.
func OnMessage(ctx context.Context, mc runtime.MessageContext) error {
	tmpl, err := runtime.Bubble("", bubble.WithRole("assistant"), bubble.WithType("text"))
	if err != nil {
		return err
	}
	reply, err := runtime.Send(ctx, tmpl)
	if err != nil {
		return err
	}

	response := "Echo: " + mc.Message
	counter := &echoCounter{}
	for _, chunk := range chunkText(response, 1) {
		reply.Stream(chunk)
		if err := reply.Config(bubble.WithName(counter.next())); err != nil {
			return err
		}
	}
	reply.Done()
	return nil
}
