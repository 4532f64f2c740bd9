package client

import "sync"

// SubmitButtonState is the visible state of the submit control.
type SubmitButtonState struct {
	IsLoading bool   `json:"is_loading"`
	Label     string `json:"label"`
}

// ButtonState is a SubmitControl with no page behind it, for headless
// callers that render the state themselves.
type ButtonState struct {
	mu    sync.Mutex
	state SubmitButtonState
}

var _ SubmitControl = (*ButtonState)(nil)

func NewButtonState(label string) *ButtonState {
	return &ButtonState{state: SubmitButtonState{Label: label}}
}

func (b *ButtonState) SetBusy(busy bool) {
	b.mu.Lock()
	b.state.IsLoading = busy
	b.mu.Unlock()
}

func (b *ButtonState) SetLabel(label string) {
	b.mu.Lock()
	b.state.Label = label
	b.mu.Unlock()
}

func (b *ButtonState) State() SubmitButtonState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Flag is a Toggle with no page behind it.
type Flag struct {
	mu      sync.Mutex
	visible bool
}

var _ Toggle = (*Flag)(nil)

func (f *Flag) Show() {
	f.mu.Lock()
	f.visible = true
	f.mu.Unlock()
}

func (f *Flag) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}
