package chatbot

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

// Script is the canned part of the assistant: greeting, quick replies and
// keyword rules answered without calling the remote backend.
type Script struct {
	Greeting     string              `yaml:"greeting"`
	QuickReplies []models.QuickReply `yaml:"quick_replies"`
	Fallback     string              `yaml:"fallback"`
	Offline      string              `yaml:"offline"`
	Rules        []Rule              `yaml:"rules"`
}

// Rule answers any message containing one of its keywords.
type Rule struct {
	Name         string              `yaml:"name"`
	Keywords     []string            `yaml:"keywords"`
	Reply        string              `yaml:"reply"`
	QuickReplies []models.QuickReply `yaml:"quick_replies"`
}

// DefaultScript is used when no script file is configured.
func DefaultScript() *Script {
	s := &Script{
		Rules: []Rule{
			{
				Name:     "benefits",
				Keywords: []string{"benefits", "benefit"},
				Reply: "Yellow Card members receive health and hospitalization assistance under the " +
					"\"Womb to Tomb\" program. Open the Home tab to see every benefit currently offered.",
			},
			{
				Name:     "support",
				Keywords: []string{"support", "contact", "help desk"},
				Reply:    "You can reach the City Government of Lucena through https://lgu.lucenacity.gov.ph/ or visit the Yellow Card office at City Hall.",
			},
		},
	}
	s.setDefaults()
	return s
}

// LoadScript reads a YAML script. Missing fields fall back to the defaults.
func LoadScript(path string) (*Script, error) {
	if path == "" {
		return DefaultScript(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chatbot script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse chatbot script: %w", err)
	}
	for i, r := range s.Rules {
		if r.Reply == "" || len(r.Keywords) == 0 {
			return nil, fmt.Errorf("chatbot rule %d (%s) needs keywords and a reply", i, r.Name)
		}
	}
	s.setDefaults()
	return &s, nil
}

func (s *Script) setDefaults() {
	if s.Greeting == "" {
		s.Greeting = "Hello! I'm your Yellow Card Assistant. How can I help you today?"
	}
	if len(s.QuickReplies) == 0 {
		s.QuickReplies = []models.QuickReply{
			{Title: "View Benefits", Value: "benefits"},
			{Title: "Contact Support", Value: "support"},
		}
	}
	if s.Fallback == "" {
		s.Fallback = "Sorry, I didn't get that."
	}
	if s.Offline == "" {
		s.Offline = "Oops! I couldn't connect to the YellowCard server. Please check your connection."
	}
}

// Match returns the first rule whose keyword appears in text. Quick reply
// titles resolve to their value first, so "View Benefits" hits "benefits".
func (s *Script) Match(text string) (*Rule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, qr := range s.QuickReplies {
		if strings.EqualFold(normalized, qr.Title) {
			normalized = strings.ToLower(qr.Value)
			break
		}
	}
	for i := range s.Rules {
		for _, kw := range s.Rules[i].Keywords {
			if kw != "" && strings.Contains(normalized, strings.ToLower(kw)) {
				return &s.Rules[i], true
			}
		}
	}
	return nil, false
}
