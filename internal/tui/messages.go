// Package tui implements the Bubble Tea chat front end: a conversation
// pane, a message viewport, and an input line, fed by draining the bridge's
// event channel on a fixed tick.
package tui

import "time"

// drainMsg triggers a TryRecvEvents drain. The bridge never pushes into the
// UI; the UI polls on its own cadence.
type drainMsg time.Time

// drainInterval is the event poll cadence. Fast enough to feel live without
// burning CPU on an idle window.
const drainInterval = 100 * time.Millisecond
