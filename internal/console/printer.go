// Package console prints production progress and agent output to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/manuscript"
	"github.com/casualjim/bookstart/messages"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
)

var _ events.Hook = (*Printer)(nil)

// Printer is an events.Hook that writes progress lines and, when streaming,
// the text of the agents as it arrives. Output of concurrent chapters is
// interleaved; every change of speaker starts a new prefixed line.
type Printer struct {
	w      io.Writer
	stream bool

	mu         sync.Mutex
	lastSender string
	midLine    bool
}

// NewPrinter writes to w. With stream set, assistant chunks are echoed.
func NewPrinter(w io.Writer, stream bool) *Printer {
	return &Printer{w: w, stream: stream}
}

func stageColor(stage events.Stage) func(string, ...any) string {
	switch stage {
	case events.StageFailed:
		return color.RedString
	case events.StageDone, events.StageSaved:
		return color.GreenString
	case events.StageReview, events.StageRevise:
		return color.YellowString
	default:
		return color.CyanString
	}
}

func (p *Printer) breakLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
	p.lastSender = ""
}

func (p *Printer) OnUserPrompt(context.Context, messages.Message[messages.UserMessage]) {}

func (p *Printer) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	if !p.stream || msg.Payload.Content == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Sender != p.lastSender {
		p.breakLine()
		if msg.Sender != "" {
			fmt.Fprint(p.w, color.MagentaString(msg.Sender)+": ")
		}
		p.lastSender = msg.Sender
	}
	fmt.Fprint(p.w, msg.Payload.Content)
	p.midLine = !strings.HasSuffix(msg.Payload.Content, "\n")
}

func (p *Printer) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
	if !p.stream {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
}

func (p *Printer) OnProgress(_ context.Context, ev events.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()

	var line strings.Builder
	line.WriteString(stageColor(ev.Stage)("%-8s", ev.Stage))
	if ev.Chapter > 0 {
		fmt.Fprintf(&line, " chapter %d", ev.Chapter)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&line, " %s", ev.Detail)
	}
	fmt.Fprintln(p.w, line.String())
}

func (p *Printer) OnError(_ context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fmt.Fprintf(p.w, "%s %v\n", color.RedString("error:"), err)
}

// Markdown renders md for the terminal and writes it to w.
func Markdown(w io.Writer, md string, width int) error {
	out, err := manuscript.Render(md, width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// Dump pretty prints values for --debug output.
func Dump(w io.Writer, values ...any) {
	printer := pp.New()
	printer.SetColoringEnabled(!color.NoColor)
	_, _ = printer.Fprintln(w, values...)
}
