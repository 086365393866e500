// Package orchestrator decides which follow-up actions a transcript gets,
// turns button presses back into work, and shapes all outgoing text into
// transport-sized messages. It knows nothing about Telegram: the bot layer
// renders its action descriptors into whatever keyboard the transport uses.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retell/internal/langdetect"
	"retell/internal/provider"
	"retell/internal/session"
	"retell/internal/textsplit"
	"retell/pkg/model"
	"retell/pkg/resilience"
)

// ActionKind names a follow-up action on a transcript.
type ActionKind string

const (
	ActionSummary   ActionKind = "summary"
	ActionTranslate ActionKind = "translate"
)

// genTemperature keeps generation close to the source text. Summaries and
// translations must be faithful, not creative.
const genTemperature = 0.3

const summarySystemPrompt = "Ты помощник для создания кратких пересказов. " +
	"Сделай краткий пересказ текста, сохранив все важные детали, имена, даты, " +
	"цифры и ключевые мысли. Пиши на том же языке что и оригинал. " +
	"Выводи только пересказ, без пояснений."

const translateSystemPromptFmt = "Ты переводчик. Переведи текст на %s язык. " +
	"Сохрани смысл и стиль оригинала. Выводи только перевод, без пояснений."

// Action describes one button offered under a transcript.
type Action struct {
	Kind       ActionKind
	TargetLang langdetect.Lang
	Label      string
	Token      string
}

// ActionRequest is a parsed callback token.
type ActionRequest struct {
	Kind       ActionKind
	TargetLang langdetect.Lang
	ID         model.TranscriptID
}

// Result carries fully formatted messages ready to send, in order.
type Result struct {
	Messages []string
}

// Reply is the initial transcript delivery: ordered messages plus the
// actions to attach and the index of the message that carries them.
type Reply struct {
	Messages      []string
	Actions       []Action
	KeyboardIndex int
}

// Options unifies what used to be separate program variants.
type Options struct {
	// MaxMessageLen bounds every outgoing message, in runes.
	MaxMessageLen int

	// SummaryWordThreshold hides the summary button below this word count.
	SummaryWordThreshold int

	// SendInitialAsMultipart attaches the keyboard to the last part of a
	// multi-part transcript. When false the keyboard goes on the first
	// (edited) message instead; all parts are still delivered.
	SendInitialAsMultipart bool

	// ProviderTimeout bounds a single generation call.
	ProviderTimeout time.Duration

	// Retry controls how generation failures are retried.
	Retry *resilience.RetryConfig
}

// DefaultOptions mirror the limits the bot has always run with: 4000 stays
// under Telegram's 4096 hard limit, 20 words is where a summary starts
// being worth a button.
func DefaultOptions() Options {
	return Options{
		MaxMessageLen:          4000,
		SummaryWordThreshold:   20,
		SendInitialAsMultipart: true,
		ProviderTimeout:        60 * time.Second,
		Retry:                  resilience.DefaultRetryConfig(),
	}
}

type Orchestrator struct {
	sessions  session.Store
	generator provider.Generator
	opts      Options
	breaker   *resilience.CircuitBreaker
	limiter   *resilience.RateLimiter
}

func New(sessions session.Store, generator provider.Generator, opts Options) *Orchestrator {
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = 4000
	}
	if opts.SummaryWordThreshold <= 0 {
		opts.SummaryWordThreshold = 20
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 60 * time.Second
	}
	if opts.Retry == nil {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	return &Orchestrator{
		sessions:  sessions,
		generator: generator,
		opts:      opts,
		breaker:   resilience.NewCircuitBreaker(5, 30*time.Second),
		limiter:   resilience.NewRateLimiter(20, time.Minute),
	}
}

// Actions returns the buttons to offer under a transcript. The translate
// direction follows the detected language; the summary button appears only
// when there is enough text to summarize.
func (o *Orchestrator) Actions(t *model.Transcript) []Action {
	var actions []Action

	if t.WordCount() >= o.opts.SummaryWordThreshold {
		actions = append(actions, Action{
			Kind:  ActionSummary,
			Label: "Краткий пересказ",
			Token: EncodeAction(ActionSummary, "", t.ID),
		})
	}

	target := langdetect.Opposite(langdetect.Detect(t.Text))
	actions = append(actions, Action{
		Kind:       ActionTranslate,
		TargetLang: target,
		Label:      "Перевести на " + langdetect.Name(target),
		Token:      EncodeAction(ActionTranslate, target, t.ID),
	})

	return actions
}

// EncodeAction builds the opaque callback token: "summary:<id>" or
// "translate:<lang>:<id>".
func EncodeAction(kind ActionKind, lang langdetect.Lang, id model.TranscriptID) string {
	if kind == ActionTranslate {
		return fmt.Sprintf("%s:%s:%s", kind, lang, id)
	}
	return fmt.Sprintf("%s:%s", kind, id)
}

// ParseAction decodes a callback token back into its logical fields.
// Tokens arrive from the outside world, so every field is validated.
func ParseAction(token string) (ActionRequest, error) {
	fields := strings.Split(token, ":")

	switch ActionKind(fields[0]) {
	case ActionSummary:
		if len(fields) != 2 {
			return ActionRequest{}, fmt.Errorf("malformed summary token: %q", token)
		}
		id, err := model.ParseTranscriptID(fields[1])
		if err != nil {
			return ActionRequest{}, fmt.Errorf("malformed transcript id in token %q: %w", token, err)
		}
		return ActionRequest{Kind: ActionSummary, ID: id}, nil

	case ActionTranslate:
		if len(fields) != 3 || !langdetect.Valid(fields[1]) {
			return ActionRequest{}, fmt.Errorf("malformed translate token: %q", token)
		}
		id, err := model.ParseTranscriptID(fields[2])
		if err != nil {
			return ActionRequest{}, fmt.Errorf("malformed transcript id in token %q: %w", token, err)
		}
		return ActionRequest{Kind: ActionTranslate, TargetLang: langdetect.Lang(fields[1]), ID: id}, nil

	default:
		return ActionRequest{}, fmt.Errorf("unknown action token: %q", token)
	}
}

// Run executes a parsed action: recovers the transcript, calls the
// generator under the rate limiter, circuit breaker and retry policy, and
// segments the output. A session miss surfaces as session.ErrNotFound so
// the caller can ask the user to resend the audio.
func (o *Orchestrator) Run(ctx context.Context, req ActionRequest) (*Result, error) {
	transcript, err := o.sessions.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if !o.limiter.Allow() {
		return nil, resilience.ErrTooManyRequests
	}

	var system, header string
	switch req.Kind {
	case ActionSummary:
		system = summarySystemPrompt
		header = "Краткий пересказ"
	case ActionTranslate:
		system = fmt.Sprintf(translateSystemPromptFmt, langdetect.Name(req.TargetLang))
		header = "Перевод на " + langdetect.Name(req.TargetLang)
	default:
		return nil, fmt.Errorf("unknown action kind: %q", req.Kind)
	}

	var output string
	err = o.breaker.Execute(func() error {
		return resilience.RetryWithExponentialBackoff(ctx, o.opts.Retry, func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
			defer cancel()

			var genErr error
			output, genErr = o.generator.Generate(callCtx, system, transcript.Text, genTemperature)
			return genErr
		})
	})
	if err != nil {
		return nil, err
	}

	parts, err := textsplit.Split(output, o.opts.MaxMessageLen)
	if err != nil {
		return nil, err
	}

	return &Result{Messages: headedParts(header, parts)}, nil
}

// TranscriptReply formats the initial transcript delivery and the action
// keyboard placement.
func (o *Orchestrator) TranscriptReply(t *model.Transcript) (*Reply, error) {
	parts, err := textsplit.Split(t.Text, o.opts.MaxMessageLen)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Actions: o.Actions(t)}

	if len(parts) == 1 {
		reply.Messages = []string{"Расшифровка:\n\n" + parts[0]}
		return reply, nil
	}

	reply.Messages = make([]string, len(parts))
	for i, part := range parts {
		if i == 0 {
			reply.Messages[i] = fmt.Sprintf("Расшифровка %s:\n\n%s", textsplit.Label(1, len(parts)), part)
		} else {
			reply.Messages[i] = fmt.Sprintf("Часть %d/%d:\n\n%s", i+1, len(parts), part)
		}
	}

	if o.opts.SendInitialAsMultipart {
		reply.KeyboardIndex = len(parts) - 1
	}

	return reply, nil
}

// headedParts prefixes each part with the action header, adding a part
// counter when there is more than one.
func headedParts(header string, parts []string) []string {
	if len(parts) == 1 {
		return []string{header + ":\n\n" + parts[0]}
	}

	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = fmt.Sprintf("%s %s:\n\n%s", header, textsplit.Label(i+1, len(parts)), part)
	}
	return out
}
