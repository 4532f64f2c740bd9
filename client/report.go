package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
)

// SubmissionLog is the report written after a submission attempt.
type SubmissionLog struct {
	Endpoint string `json:"endpoint"`
	Page     string `json:"page"`
	Network  string `json:"network"`
	Protocol string `json:"protocol,omitempty"`

	// Zero unless the submission was scheduled.
	TargetTime time.Time `json:"target_time,omitzero"`
	ActualTime time.Time `json:"actual_time"`

	ConnectDone      time.Duration `json:"connect_done"`
	TTFB             time.Duration `json:"ttfb"`
	TotalDuration    time.Duration `json:"total_duration"`
	ConnectionReused bool          `json:"connection_reused"`

	Fields         []string          `json:"fields"`
	Outcome        OutcomeKind       `json:"outcome"`
	StatusCode     int               `json:"status_code,omitempty"`
	Notification   string            `json:"notification,omitempty"`
	BookingID      string            `json:"booking_id,omitempty"`
	ServerErrors   []string          `json:"server_errors,omitempty"`
	Error          string            `json:"error,omitempty"`
	Button         SubmitButtonState `json:"button"`
	SuccessVisible bool              `json:"success_visible"`
}

// NewSubmissionLog collects the report fields from an outcome and the page
// controls it touched.
func NewSubmissionLog(endpoint, page, network string, out Outcome, button SubmitControl, success Toggle) SubmissionLog {
	e := SubmissionLog{
		Endpoint:     endpoint,
		Page:         page,
		Network:      network,
		ActualTime:   out.Started,
		Outcome:      out.Kind,
		Notification: out.Message,
	}
	for name := range out.Payload {
		e.Fields = append(e.Fields, name)
	}
	sort.Strings(e.Fields)

	if r := out.Result; r != nil {
		e.Protocol = r.Protocol
		e.StatusCode = r.StatusCode
		e.ConnectDone = r.ConnectDone
		e.TTFB = r.GotFirstResponseByte
		e.TotalDuration = r.TotalDuration
		e.ConnectionReused = r.ConnectionReused
	}
	if out.Reply != nil {
		e.BookingID = out.Reply.BookingID
		e.ServerErrors = out.Reply.Errors
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	if button != nil {
		e.Button = button.State()
	}
	if success != nil {
		e.SuccessVisible = success.Visible()
	}
	return e
}

// PrintSubmissionLog writes a colored report of the attempt to w.
func PrintSubmissionLog(w io.Writer, e SubmissionLog) {
	headerColor := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	sectionColor := color.New(color.FgHiYellow).SprintFunc()
	labelColor := color.New(color.FgWhite).SprintFunc()
	valueColor := color.New(color.FgHiWhite).SprintFunc()
	successColor := color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor := color.New(color.FgRed, color.Bold).SprintFunc()
	driftColor := color.New(color.FgHiMagenta).SprintfFunc()

	row := func(label string, value any) {
		fmt.Fprintf(w, "%-18s: %s\n", labelColor(label), valueColor(fmt.Sprint(value)))
	}
	section := func(title string) {
		fmt.Fprintln(w, "\n"+sectionColor("--------------------------------------------------"))
		fmt.Fprintln(w, sectionColor(title))
		fmt.Fprintln(w, sectionColor("--------------------------------------------------"))
	}

	fmt.Fprintln(w, "\n"+headerColor("[Tour Booking Submission]"))
	row("Endpoint", e.Endpoint)
	row("Page", e.Page)
	row("Network", e.Network)
	if e.Protocol != "" {
		row("Protocol", e.Protocol)
	}

	section("[1] Timing")
	if !e.TargetTime.IsZero() {
		row("Target Time", e.TargetTime.Format("2006-01-02 15:04:05.000"))
		drift := e.ActualTime.Sub(e.TargetTime)
		fmt.Fprintf(w, "%-18s: %s\n", labelColor("Drift"), driftColor("%+d µs", drift.Microseconds()))
	}
	row("Fired At", e.ActualTime.Format("2006-01-02 15:04:05.000000"))
	row("Connect", fmt.Sprintf("%d ms", e.ConnectDone.Milliseconds()))
	row("TTFB", fmt.Sprintf("%d ms", e.TTFB.Milliseconds()))
	row("Total", fmt.Sprintf("%d ms", e.TotalDuration.Milliseconds()))
	row("Conn Reused", e.ConnectionReused)

	section("[2] Result")
	row("Fields", e.Fields)
	if e.StatusCode != 0 {
		row("HTTP Status", e.StatusCode)
	}
	if e.BookingID != "" {
		row("Booking ID", e.BookingID)
	}
	for _, se := range e.ServerErrors {
		row("Server Error", se)
	}
	if e.Notification != "" {
		row("Alert", e.Notification)
	}
	if e.Error != "" {
		row("Error", e.Error)
	}
	row("Button", fmt.Sprintf("%q (loading=%v)", e.Button.Label, e.Button.IsLoading))
	row("Success Shown", e.SuccessVisible)

	switch e.Outcome {
	case OutcomeSuccess:
		fmt.Fprintln(w, "\n"+successColor("BOOKING SUBMITTED"))
	case OutcomeInvalid:
		fmt.Fprintln(w, "\n"+errorColor("FORM INVALID, NOTHING SENT"))
	default:
		fmt.Fprintln(w, "\n"+errorColor("BOOKING FAILED"))
	}
}

// WriteStructuredLog appends the log entry as one JSON line to filename.
func WriteStructuredLog(e SubmissionLog, filename string) error {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = f.Write(b)
	return err
}
