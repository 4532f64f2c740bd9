package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSText(t *testing.T) {
	cases := []struct {
		in     any
		text   string
		truthy bool
	}{
		{nil, "", false},
		{"", "", false},
		{"Sold out", "Sold out", true},
		{false, "false", false},
		{true, "true", true},
		{float64(0), "0", false},
		{float64(1.5), "1.5", true},
		{[]any{"a", float64(2)}, "a,2", true},
		{[]any{}, "", true},
		{map[string]any{}, "[object Object]", true},
	}
	for _, tc := range cases {
		text, truthy := jsText(tc.in)
		assert.Equal(t, tc.text, text, "%#v", tc.in)
		assert.Equal(t, tc.truthy, truthy, "%#v", tc.in)
	}
}

func TestDecodeReply(t *testing.T) {
	r, err := decodeReply([]byte(`{"error":"Sold out","errors":["a"],"booking_id":12,"success":false}`))
	require.NoError(t, err)
	msg, ok := r.ErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "Sold out", msg)
	assert.Equal(t, "12", r.BookingID)
	assert.Equal(t, []string{"a"}, r.Errors)

	r, err = decodeReply([]byte("\xef\xbb\xbf" + `{"error":"Sold out"}`))
	require.NoError(t, err)
	msg, ok = r.ErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "Sold out", msg)

	r, err = decodeReply([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, r.Raw)

	_, err = decodeReply([]byte(``))
	assert.Error(t, err)
	_, err = decodeReply([]byte(`{} trailing`))
	assert.Error(t, err)
}

func TestInlineStyle(t *testing.T) {
	assert.Equal(t, "display: block", setDisplay("", "block"))
	assert.Equal(t, "color: green; display: block", setDisplay("display:none;color: green;", "block"))

	d, ok := inlineDisplay("color: red; DISPLAY: None")
	assert.True(t, ok)
	assert.Equal(t, "none", d)

	_, ok = inlineDisplay("color: red")
	assert.False(t, ok)
}
