package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultEndpoint receives the booking payload.
	DefaultEndpoint = "http://127.0.0.1:5500/book-tour-complete.html"

	ProcessingLabel = "Processing..."
	IdleLabel       = "Book Now"

	MsgBookingFailed = "Booking failed. Please try again."
	MsgGenericError  = "An error occurred. Please try again."
)

var (
	errNullReply         = errors.New("reply body is JSON null")
	errNoSuccessMessage  = errors.New("no success message element")
	errNoSubmitTransport = errors.New("no transport configured")
)

// FormAdapter is the booking form as the handler sees it.
type FormAdapter interface {
	// IsValid runs the form's native constraint validation.
	IsValid() bool
	CollectFields() map[string]string
	// Reset restores every field to its default.
	Reset()
	SubmitButton() SubmitControl
}

// SubmitControl is the form's submit button.
type SubmitControl interface {
	SetBusy(busy bool)
	SetLabel(label string)
	State() SubmitButtonState
}

// Toggle is an element that can be revealed.
type Toggle interface {
	Show()
	Visible() bool
}

// SubmitEvent is one submit of a form.
type SubmitEvent struct {
	Form FormAdapter

	mu        sync.Mutex
	prevented bool
}

func NewSubmitEvent(form FormAdapter) *SubmitEvent {
	return &SubmitEvent{Form: form}
}

// PreventDefault stops the native form navigation.
func (e *SubmitEvent) PreventDefault() {
	e.mu.Lock()
	e.prevented = true
	e.mu.Unlock()
}

func (e *SubmitEvent) DefaultPrevented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevented
}

type OutcomeKind string

const (
	// OutcomeInvalid: the form failed validation and nothing was sent.
	OutcomeInvalid OutcomeKind = "invalid"
	// OutcomeSuccess: 2xx reply with a JSON body.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeRejected: non-2xx reply with a JSON body.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeFailed: transport, body or handling failure.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome describes one submission attempt.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// Message is the text handed to the NotificationSink, if any.
	Message  string            `json:"message,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
	Result   *RequestResult    `json:"result,omitempty"`
	Reply    *Reply            `json:"reply,omitempty"`
	Err      error             `json:"-"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Reply is the decoded response body. Raw keeps the value as parsed; the
// other fields are picked out of it when it is an object.
type Reply struct {
	Raw       any      `json:"raw"`
	Success   *bool    `json:"success,omitempty"`
	Message   string   `json:"message,omitempty"`
	BookingID string   `json:"booking_id,omitempty"`
	Errors    []string `json:"errors,omitempty"`

	errorText string
	hasError  bool
}

// ErrorMessage returns the reply's error field as text, and whether that
// field was set to a truthy value.
func (r *Reply) ErrorMessage() (string, bool) {
	return r.errorText, r.hasError
}

var utf8BOM = []byte("\xef\xbb\xbf")

// decodeReply parses body as response.json() would, leading BOM included.
func decodeReply(body []byte) (*Reply, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	reply := &Reply{Raw: raw}
	obj, ok := raw.(map[string]any)
	if !ok {
		return reply, nil
	}

	reply.errorText, reply.hasError = jsText(obj["error"])
	if b, ok := obj["success"].(bool); ok {
		reply.Success = &b
	}
	if m, ok := obj["message"].(string); ok {
		reply.Message = m
	}
	if id, ok := jsText(obj["booking_id"]); ok {
		reply.BookingID = id
	}
	if list, ok := obj["errors"].([]any); ok {
		for _, e := range list {
			if s, ok := jsText(e); ok {
				reply.Errors = append(reply.Errors, s)
			}
		}
	}
	return reply, nil
}

// jsText renders a decoded JSON value the way String(v) would in a
// browser, and reports whether the value is truthy.
func jsText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case bool:
		return strconv.FormatBool(t), t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), t != 0
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i], _ = jsText(e)
		}
		return strings.Join(parts, ","), true
	default:
		return "[object Object]", true
	}
}

// Handler submits booking forms to a fixed endpoint.
type Handler struct {
	poster   Poster
	success  Toggle
	notifier NotificationSink
	endpoint string
	log      zerolog.Logger
}

type Option func(*Handler)

func WithEndpoint(endpoint string) Option {
	return func(h *Handler) {
		h.endpoint = endpoint
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(h *Handler) {
		h.log = log
	}
}

// NewHandler wires a handler. success is revealed after an accepted
// booking; notifier receives every error message.
func NewHandler(poster Poster, success Toggle, notifier NotificationSink, opts ...Option) *Handler {
	h := &Handler{
		poster:   poster,
		success:  success,
		notifier: notifier,
		endpoint: DefaultEndpoint,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Endpoint() string {
	return h.endpoint
}

// Handle is the submit listener. It always returns false so the form's own
// navigation never happens.
func (h *Handler) Handle(ctx context.Context, ev *SubmitEvent) bool {
	h.Submit(ctx, ev)
	return false
}

// Submit runs one submission attempt and reports its outcome. It blocks
// until the reply is handled and the submit button is restored. Nothing
// stops a second Submit on the same form while one is in flight.
func (h *Handler) Submit(ctx context.Context, ev *SubmitEvent) (out Outcome) {
	ev.PreventDefault()
	out.Started = time.Now()

	form := ev.Form
	if form == nil || !form.IsValid() {
		out.Kind = OutcomeInvalid
		out.Finished = time.Now()
		h.log.Debug().Msg("form failed validation, not submitting")
		return out
	}

	release := h.busy(form.SubmitButton())
	defer func() {
		release()
		out.Finished = time.Now()
		h.logOutcome(out)
	}()
	defer h.recoverInto(&out)

	out.Payload = form.CollectFields()
	h.log.Info().
		Str("endpoint", h.endpoint).
		Int("fields", len(out.Payload)).
		Msg("submitting booking")

	if h.poster == nil {
		h.fail(&out, errNoSubmitTransport)
		return out
	}

	body, err := json.Marshal(out.Payload)
	if err != nil {
		h.fail(&out, fmt.Errorf("encode payload: %w", err))
		return out
	}

	res, err := h.poster.PostJSON(ctx, h.endpoint, body)
	if err != nil {
		h.fail(&out, err)
		return out
	}
	out.Result = res

	reply, err := decodeReply(res.Body)
	if err != nil {
		h.fail(&out, err)
		return out
	}
	out.Reply = reply

	if res.OK() {
		if h.success == nil {
			h.fail(&out, errNoSuccessMessage)
			return out
		}
		h.success.Show()
		form.Reset()
		out.Kind = OutcomeSuccess
		return out
	}

	if reply.Raw == nil {
		h.fail(&out, errNullReply)
		return out
	}
	msg := MsgBookingFailed
	if text, ok := reply.ErrorMessage(); ok {
		msg = text
	}
	out.Kind = OutcomeRejected
	out.Message = msg
	h.notify(msg)
	return out
}

// busy marks the button as in flight and returns the function that puts it
// back to idle.
func (h *Handler) busy(button SubmitControl) func() {
	if button == nil {
		return func() {}
	}
	button.SetBusy(true)
	button.SetLabel(ProcessingLabel)
	return func() {
		button.SetBusy(false)
		button.SetLabel(IdleLabel)
	}
}

func (h *Handler) fail(out *Outcome, err error) {
	out.Kind = OutcomeFailed
	out.Err = err
	out.Message = MsgGenericError
	h.notify(MsgGenericError)
}

func (h *Handler) recoverInto(out *Outcome) {
	if r := recover(); r != nil {
		h.log.Error().Interface("panic", r).Msg("booking submission panicked")
		h.fail(out, fmt.Errorf("panic: %v", r))
	}
}

func (h *Handler) notify(msg string) {
	if h.notifier != nil {
		h.notifier.Notify(msg)
	}
}

func (h *Handler) logOutcome(out Outcome) {
	ev := h.log.Info()
	switch out.Kind {
	case OutcomeRejected:
		ev = h.log.Warn()
	case OutcomeFailed:
		ev = h.log.Error().Err(out.Err)
	}
	if out.Result != nil {
		ev = ev.Int("status", out.Result.StatusCode)
	}
	if out.Reply != nil {
		if out.Reply.BookingID != "" {
			ev = ev.Str("booking_id", out.Reply.BookingID)
		}
		if len(out.Reply.Errors) > 0 {
			ev = ev.Strs("errors", out.Reply.Errors)
		}
	}
	ev.Str("outcome", string(out.Kind)).
		Dur("duration", out.Finished.Sub(out.Started)).
		Msg("booking submission finished")
}
