// Package speech wraps an external text-to-speech command behind a small
// speak-and-cancel surface. No engine configured means speech is silently
// unavailable, never an error.
package speech

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// CancelFunc stops an in-flight utterance. Always safe to call, including
// after the utterance finished on its own.
type CancelFunc func()

// Speaker produces speech for the review UI and the settings voice preview.
type Speaker interface {
	// Speak starts speaking asynchronously and returns a cancel handle.
	Speak(text, voiceID string) CancelFunc
	// Available reports whether an engine is configured.
	Available() bool
}

// NewSpeaker builds a command-backed speaker, or a no-op one when the
// command template is empty. The template is split on whitespace; the
// placeholders {voice} and {text} are substituted per utterance.
func NewSpeaker(commandTemplate string, logger *slog.Logger) Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	fields := strings.Fields(commandTemplate)
	if len(fields) == 0 {
		return noopSpeaker{}
	}
	return &commandSpeaker{template: fields, logger: logger}
}

type commandSpeaker struct {
	template []string
	logger   *slog.Logger
}

func (s *commandSpeaker) Available() bool { return true }

func (s *commandSpeaker) Speak(text, voiceID string) CancelFunc {
	args := expandTemplate(s.template, text, voiceID)
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	go func() {
		defer cancel()
		if err := cmd.Run(); err != nil && ctx.Err() == nil {
			s.logger.Warn("speech command failed", "command", args[0], "error", err)
		}
	}()

	return func() { cancel() }
}

// expandTemplate substitutes the utterance into the command template. A
// template without a {text} placeholder gets the text appended, so plain
// commands like "espeak-ng -v ar" work unadorned.
func expandTemplate(template []string, text, voiceID string) []string {
	args := make([]string, 0, len(template)+1)
	sawText := false
	for _, f := range template {
		f = strings.ReplaceAll(f, "{voice}", voiceID)
		if strings.Contains(f, "{text}") {
			f = strings.ReplaceAll(f, "{text}", text)
			sawText = true
		}
		args = append(args, f)
	}
	if !sawText {
		args = append(args, text)
	}
	return args
}

type noopSpeaker struct{}

func (noopSpeaker) Available() bool { return false }

func (noopSpeaker) Speak(string, string) CancelFunc { return func() {} }
