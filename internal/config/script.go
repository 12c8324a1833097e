package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NamePlaceholder is replaced by the contact's display name in greetings.
const NamePlaceholder = "{name}"

// FollowUp sends Text after any generated reply containing Trigger.
type FollowUp struct {
	Trigger string `yaml:"trigger"`
	Text    string `yaml:"text"`
}

// Script holds every fixed text the outreach worker sends.
type Script struct {
	Greetings       []string   `yaml:"greetings"`
	SystemPrompt    string     `yaml:"system_prompt"`
	Reminder        string     `yaml:"reminder"`
	Fallback        string     `yaml:"fallback"`
	VoiceApology    string     `yaml:"voice_apology"`
	StickerApology  string     `yaml:"sticker_apology"`
	SensitiveMarker string     `yaml:"sensitive_marker"`
	FollowUps       []FollowUp `yaml:"follow_ups"`
}

// DefaultScript is used when no SCRIPT_FILE is configured.
func DefaultScript() Script {
	return Script{
		Greetings: []string{
			"{name}, hello!\n\nWe help people take care of their health with clean, high quality drinking water.\n\nWould you like to learn how water affects your health?",
			"Good afternoon, {name}!\n\nWe build water purification systems so you can enjoy the best water at home.\n\nWould you like to hear more?",
		},
		SystemPrompt:   "You are a polite sales assistant. Ask at most one question per message.",
		Reminder:       "I would like to ask you just a couple of questions. It won't take long.\nLooking forward to your answer!",
		Fallback:       "Sorry, I can't look at your message in this format right now. Could you write it as text?",
		VoiceApology:   "Sorry, I can't listen to your message in this format right now. Could you write it as text?",
		StickerApology: "Sorry, I can't process stickers right now. Could you write it as text?",
	}
}

// LoadScript reads a YAML script from path. Fields left empty in the file keep
// their DefaultScript values.
func LoadScript(path string) (Script, error) {
	script := DefaultScript()
	if path == "" {
		return script, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script %s: %w", path, err)
	}
	var file Script
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	script.merge(file)
	if err := script.Validate(); err != nil {
		return Script{}, fmt.Errorf("script %s: %w", path, err)
	}
	return script, nil
}

func (s *Script) merge(o Script) {
	if len(o.Greetings) > 0 {
		s.Greetings = o.Greetings
	}
	overlay := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	overlay(&s.SystemPrompt, o.SystemPrompt)
	overlay(&s.Reminder, o.Reminder)
	overlay(&s.Fallback, o.Fallback)
	overlay(&s.VoiceApology, o.VoiceApology)
	overlay(&s.StickerApology, o.StickerApology)
	overlay(&s.SensitiveMarker, o.SensitiveMarker)
	if len(o.FollowUps) > 0 {
		s.FollowUps = o.FollowUps
	}
}

// Validate rejects scripts the worker cannot run with.
func (s Script) Validate() error {
	var errs []error
	if len(s.Greetings) == 0 {
		errs = append(errs, errors.New("at least one greeting is required"))
	}
	for i, g := range s.Greetings {
		if strings.TrimSpace(g) == "" {
			errs = append(errs, fmt.Errorf("greeting %d is empty", i))
		}
	}
	for i, f := range s.FollowUps {
		if strings.TrimSpace(f.Trigger) == "" || strings.TrimSpace(f.Text) == "" {
			errs = append(errs, fmt.Errorf("follow-up %d needs both trigger and text", i))
		}
	}
	return errors.Join(errs...)
}
