// Package plugin discovers and runs output plugins. An output plugin is an
// external executable that receives recognized symbols as JSON on stdin,
// for example to type them into the focused application.
package plugin

import "encoding/json"

// Events a plugin may subscribe to.
const (
	// EventEmit is sent for every symbol the recognizer emits.
	EventEmit = "emit"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []string        `json:"events"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to a plugin's stdin.
type Request struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Symbol  string          `json:"symbol"`
	Text    string          `json:"text"`
	Prev    string          `json:"prev"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the plugin subscribed to event. A manifest
// without events receives everything.
func (p *Plugin) Handles(event string) bool {
	if len(p.Manifest.Events) == 0 {
		return true
	}
	for _, e := range p.Manifest.Events {
		if e == event {
			return true
		}
	}
	return false
}
