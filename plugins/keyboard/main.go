// Package main provides a keyboard output plugin. It mirrors the session
// text into the focused application by sending backspaces for removed
// characters and typing the new ones, via AppleScript on macOS and
// xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the input from the plugin dispatcher.
type Request struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Symbol  string          `json:"symbol"`
	Text    string          `json:"text"`
	Prev    string          `json:"prev"`
	Config  json.RawMessage `json:"config"`
}

// Response is the output to the plugin dispatcher.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config holds the plugin settings.
type Config struct {
	DryRun bool `json:"dry_run"`
}

// Plan is the edit that turns Prev into Text.
type Plan struct {
	Backspaces int    `json:"backspaces"`
	Type       string `json:"type"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "emit" {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	plan := diff(req.Prev, req.Text)
	if !cfg.DryRun {
		if err := apply(plan); err != nil {
			writeErrorResponse(fmt.Sprintf("typing failed: %v", err))
			return
		}
	}
	writeSuccessResponse(plan)
}

// diff keeps the longest common prefix and replaces the rest.
func diff(prev, text string) Plan {
	p, t := []rune(prev), []rune(text)
	n := 0
	for n < len(p) && n < len(t) && p[n] == t[n] {
		n++
	}
	return Plan{Backspaces: len(p) - n, Type: string(t[n:])}
}

func apply(plan Plan) error {
	switch runtime.GOOS {
	case "darwin":
		var script []string
		for i := 0; i < plan.Backspaces; i++ {
			script = append(script, `tell application "System Events" to key code 51`)
		}
		if plan.Type != "" {
			escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(plan.Type)
			script = append(script, fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped))
		}
		if len(script) == 0 {
			return nil
		}
		return run("osascript", "-e", strings.Join(script, "\n"))
	case "linux":
		if plan.Backspaces > 0 {
			args := []string{"key", "--"}
			for i := 0; i < plan.Backspaces; i++ {
				args = append(args, "BackSpace")
			}
			if err := run("xdotool", args...); err != nil {
				return err
			}
		}
		if plan.Type != "" {
			return run("xdotool", "type", "--", plan.Type)
		}
		return nil
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes the applied plan to stdout.
func writeSuccessResponse(plan Plan) {
	data, _ := json.Marshal(plan)
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
