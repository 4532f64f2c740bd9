package client_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"tour-booker/client"
)

func TestConsoleNotifier(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out bytes.Buffer
	n := client.NewConsoleNotifier(&out, nil)
	n.Notify("Sold out")
	assert.Equal(t, "\n[ALERT] Sold out\n", out.String())

	out.Reset()
	in := strings.NewReader("\n\n")
	n = client.NewConsoleNotifier(&out, in)
	n.Notify(client.MsgGenericError)
	n.Notify(client.MsgBookingFailed)
	assert.Contains(t, out.String(), client.MsgGenericError)
	assert.Contains(t, out.String(), client.MsgBookingFailed)
	assert.Equal(t, 2, strings.Count(out.String(), "Press Enter to continue..."))
	assert.Zero(t, in.Len(), "each alert waits for one line")
}

func TestNotifyFunc(t *testing.T) {
	var got string
	var sink client.NotificationSink = client.NotifyFunc(func(m string) { got = m })
	sink.Notify("hello")
	assert.Equal(t, "hello", got)
}
