package council

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/albarami/wellbeing/internal/provider"
)

var errStreamStalled = errors.New("model stream stalled")

// StreamResult is the outcome of one consumed generation stream.
type StreamResult struct {
	Text      string     // everything received, directive line included
	Directive *Directive // non-nil when generation stopped on a permitted directive
}

// StreamConsumer drives one provider stream at a time: it forwards deltas
// to the caller as they arrive, watches the accumulated buffer for tool
// directives, and abandons the stream the moment a permitted directive
// completes. A stream that stops producing deltas within the allowed wait
// is cancelled and retried with a longer wait; the waits list bounds the
// number of attempts.
type StreamConsumer struct {
	provider   provider.Provider
	stallWaits []time.Duration
	logger     *log.Logger

	// OnStall, when set, is called once per abandoned-and-retried attempt.
	OnStall func()
}

func NewStreamConsumer(p provider.Provider, stallWaits []time.Duration, logger *log.Logger) *StreamConsumer {
	if len(stallWaits) == 0 {
		stallWaits = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[STREAM] ", log.LstdFlags)
	}
	return &StreamConsumer{provider: p, stallWaits: stallWaits, logger: logger}
}

// Consume runs one generation to completion, a permitted directive, or
// failure. Deltas are emitted in arrival order, including deltas of an
// attempt that later stalls; callers wanting only the surviving text
// must take it from StreamResult.Text. Rejected directives are reported
// through onReject and left in the text verbatim.
func (sc *StreamConsumer) Consume(ctx context.Context, req provider.Request, permitted func(string) bool, emit func(string), onReject func(Directive)) (StreamResult, error) {
	var lastPartial string
	for attempt, wait := range sc.stallWaits {
		res, err := sc.attempt(ctx, req, wait, permitted, emit, onReject)
		if errors.Is(err, errStreamStalled) {
			lastPartial = res.Text
			sc.logger.Printf("stream stalled after %s (attempt %d/%d), retrying", wait, attempt+1, len(sc.stallWaits))
			if sc.OnStall != nil {
				sc.OnStall()
			}
			if res.Text != "" {
				emit("\n\n*(connection stalled; restarting this passage)*\n\n")
			}
			continue
		}
		return res, err
	}
	return StreamResult{Text: lastPartial},
		fmt.Errorf("%w after %d attempts", errStreamStalled, len(sc.stallWaits))
}

func (sc *StreamConsumer) attempt(ctx context.Context, req provider.Request, stallWait time.Duration, permitted func(string) bool, emit func(string), onReject func(Directive)) (StreamResult, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltas, err := sc.provider.Stream(streamCtx, req)
	if err != nil {
		return StreamResult{}, fmt.Errorf("starting stream: %w", err)
	}

	scan := directiveScanner{permitted: permitted, onReject: onReject}
	var buf strings.Builder

	timer := time.NewTimer(stallWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return StreamResult{Text: buf.String()}, ctx.Err()
		case <-timer.C:
			cancel()
			return StreamResult{Text: buf.String()}, errStreamStalled
		case d, open := <-deltas:
			if !open {
				if dir := scan.finish(); dir != nil {
					return StreamResult{Text: buf.String(), Directive: dir}, nil
				}
				return StreamResult{Text: buf.String()}, nil
			}
			if d.Err != nil {
				return StreamResult{Text: buf.String()}, d.Err
			}
			buf.WriteString(d.Text)
			emit(d.Text)
			if dir := scan.feed(d.Text); dir != nil {
				// Abandon the rest of the stream before dispatching the tool.
				cancel()
				return StreamResult{Text: buf.String(), Directive: dir}, nil
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(stallWait)
		}
	}
}

// directiveScanner incrementally examines streamed text line by line.
// Rejected directive lines are reported once and then treated as prose.
type directiveScanner struct {
	pending   string
	permitted func(string) bool
	onReject  func(Directive)
}

// feed appends new text and returns the first permitted directive whose
// line has fully arrived, or nil.
func (s *directiveScanner) feed(text string) *Directive {
	s.pending += text
	for {
		i := strings.IndexByte(s.pending, '\n')
		if i < 0 {
			return nil
		}
		line := s.pending[:i]
		s.pending = s.pending[i+1:]
		if d := s.examine(line); d != nil {
			return d
		}
	}
}

// finish examines the trailing unterminated line at end of stream.
func (s *directiveScanner) finish() *Directive {
	line := s.pending
	s.pending = ""
	return s.examine(line)
}

func (s *directiveScanner) examine(line string) *Directive {
	d, ok := ParseDirective(line)
	if !ok {
		return nil
	}
	if s.permitted != nil && !s.permitted(d.Tool) {
		if s.onReject != nil {
			s.onReject(d)
		}
		return nil
	}
	return &d
}
