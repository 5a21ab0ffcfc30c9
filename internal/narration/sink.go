// Package narration speaks text through the platform's speech synthesiser.
// Speech runs off the UI loop and is strictly best effort.
package narration

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoEngine means no speech command was found.
var ErrNoEngine = errors.New("no speech engine found")

// Sink speaks one utterance and returns when it is finished.
type Sink interface {
	Speak(ctx context.Context, text string) error
}

// CommandSink speaks by running an external program.
type CommandSink struct {
	name  string
	args  []string
	voice string
}

// NewCommandSink picks the speech command. A custom command is split on
// whitespace; a "{text}" argument is replaced by the utterance, otherwise the
// utterance is appended. Without a custom command the platform default is
// used: espeak-ng or espeak on Linux, say on macOS, PowerShell on Windows.
func NewCommandSink(command, voice string) (*CommandSink, error) {
	return newCommandSink(command, voice, runtime.GOOS, exec.LookPath)
}

func newCommandSink(command, voice, goos string, lookPath func(string) (string, error)) (*CommandSink, error) {
	if fields := strings.Fields(command); len(fields) > 0 {
		path, err := lookPath(fields[0])
		if err != nil {
			return nil, fmt.Errorf("speech command %q: %w", fields[0], err)
		}
		return &CommandSink{name: path, args: fields[1:]}, nil
	}

	var candidates []string
	switch goos {
	case "darwin":
		candidates = []string{"say"}
	case "windows":
		candidates = []string{"pwsh", "powershell"}
	default:
		candidates = []string{"espeak-ng", "espeak", "spd-say"}
	}
	for _, c := range candidates {
		path, err := lookPath(c)
		if err != nil {
			continue
		}
		s := &CommandSink{name: path, voice: voice}
		switch c {
		case "pwsh", "powershell":
			s.args = []string{"-NoLogo", "-NonInteractive", "-NoProfile", "-Command", "{powershell}"}
		case "spd-say":
			s.args = []string{"--wait"}
			if voice != "" {
				s.args = append(s.args, "-o", voice)
			}
		default:
			if voice != "" {
				s.args = []string{"-v", voice}
			}
		}
		return s, nil
	}
	return nil, ErrNoEngine
}

// Name returns the program the sink runs.
func (s *CommandSink) Name() string { return s.name }

func (s *CommandSink) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	args, substituted := s.argv(text)
	if !substituted {
		args = append(args, text)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (stderr: %s)", s.name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (s *CommandSink) argv(text string) ([]string, bool) {
	out := make([]string, 0, len(s.args)+1)
	substituted := false
	for _, a := range s.args {
		switch a {
		case "{text}":
			out = append(out, text)
			substituted = true
		case "{powershell}":
			out = append(out, powershellScript(text, s.voice))
			substituted = true
		default:
			out = append(out, a)
		}
	}
	return out, substituted
}

// powershellScript passes the text and voice base64-encoded so quoting never
// breaks them. An unknown voice falls back to the system default.
func powershellScript(text, voice string) string {
	var b strings.Builder
	b.WriteString("$msg = " + decodeBase64(text) + ";")
	b.WriteString("Add-Type -AssemblyName System.Speech;")
	b.WriteString("$sp = New-Object System.Speech.Synthesis.SpeechSynthesizer;")
	if voice != "" {
		b.WriteString("try { $sp.SelectVoice(" + decodeBase64(voice) + ") } catch {};")
	}
	b.WriteString("$sp.Speak($msg);")
	return b.String()
}

func decodeBase64(s string) string {
	payload := base64.StdEncoding.EncodeToString([]byte(s))
	return "[System.Text.Encoding]::UTF8.GetString([System.Convert]::FromBase64String('" + payload + "'))"
}
