package ui

import (
	"sync"

	"github.com/mcdev12/bizmonopoly/go/internal/live/events"
	"github.com/mcdev12/bizmonopoly/go/internal/live/modal"
)

// Toast is one recorded notification
type Toast struct {
	Level events.Level
	Text  string
}

// Recorder keeps every render effect in memory
type Recorder struct {
	mu        sync.Mutex
	Frames    []Frame
	Toasts    []Toast
	Modals    []modal.Snapshot
	Ticks     []string
	Navigated []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Render(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, f)
}

func (r *Recorder) Toast(level events.Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Toasts = append(r.Toasts, Toast{Level: level, Text: text})
}

func (r *Recorder) ModalChanged(snap modal.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Modals = append(r.Modals, snap)
}

func (r *Recorder) ClockTick(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ticks = append(r.Ticks, text)
}

func (r *Recorder) Navigate(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Navigated = append(r.Navigated, url)
}

// ToastList returns a copy of the recorded toasts
func (r *Recorder) ToastList() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.Toasts...)
}

// TickList returns a copy of the recorded clock texts
func (r *Recorder) TickList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Ticks...)
}

// ModalStates returns the recorded state names for one workflow
func (r *Recorder) ModalStates(name modal.Name) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []string
	for _, m := range r.Modals {
		if m.Name == name {
			states = append(states, m.State)
		}
	}
	return states
}

// Tee forwards every effect to all renderers in order
type Tee []Renderer

func (t Tee) Render(f Frame) {
	for _, r := range t {
		r.Render(f)
	}
}

func (t Tee) Toast(level events.Level, text string) {
	for _, r := range t {
		r.Toast(level, text)
	}
}

func (t Tee) ModalChanged(snap modal.Snapshot) {
	for _, r := range t {
		r.ModalChanged(snap)
	}
}

func (t Tee) ClockTick(text string) {
	for _, r := range t {
		r.ClockTick(text)
	}
}

func (t Tee) Navigate(url string) {
	for _, r := range t {
		r.Navigate(url)
	}
}
