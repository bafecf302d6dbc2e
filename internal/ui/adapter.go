// Package ui holds the outer surfaces of the recorder: adapters that render
// status events and turn user input into start/stop intents.
package ui

import (
	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/recorder"
)

const componentUI = "ui"

// Adapter is notified on every state transition and on each status tick
// while recording.
type Adapter interface {
	StatusChanged(event events.StatusEvent)
}

// Controller is the part of the recorder a UI drives. Start and Stop only
// enqueue intents and never block on audio or storage.
type Controller interface {
	Start() error
	Stop() error
	Snapshot() recorder.Status
}

// SettingsController is the part of the settings store a UI toggles.
type SettingsController interface {
	FrontEndEnabled() bool
	SetFrontEndEnabled(enabled bool) error
	MixerPolicy() audiocore.MixPolicy
	SetMixerPolicy(policy audiocore.MixPolicy) error
}

// Consumer adapts an Adapter to the event bus.
type Consumer struct {
	ConsumerName string
	Adapter      Adapter
}

// Name implements events.EventConsumer.
func (c Consumer) Name() string { return c.ConsumerName }

// ProcessEvent implements events.EventConsumer.
func (c Consumer) ProcessEvent(event events.StatusEvent) error {
	c.Adapter.StatusChanged(event)
	return nil
}
