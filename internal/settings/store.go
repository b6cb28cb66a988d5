// Package settings persists the control surface's key-value settings.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mcqsolver/mcq"
)

// Keys understood by Get and Set.
const (
	KeyAPIKey           = "apiKey"
	KeyQuestionSelector = "questionSelector"
	KeyDomainContext    = "domainContext"
)

var ErrUnknownKey = errors.New("unknown settings key")

// Settings is the stored document.
type Settings struct {
	APIKey           string `json:"apiKey,omitempty"`
	QuestionSelector string `json:"questionSelector,omitempty"`
	DomainContext    string `json:"domainContext,omitempty"`
}

// Selector returns the configured selector or mcq.DefaultSelector.
func (s Settings) Selector() string {
	if sel := strings.TrimSpace(s.QuestionSelector); sel != "" {
		return sel
	}
	return mcq.DefaultSelector
}

// Redacted hides the API key for display.
func (s Settings) Redacted() Settings {
	if k := s.APIKey; k != "" {
		if len(k) > 4 {
			s.APIKey = strings.Repeat("*", len(k)-4) + k[len(k)-4:]
		} else {
			s.APIKey = strings.Repeat("*", len(k))
		}
	}
	return s
}

// Store keeps Settings in a JSON file. An empty path keeps them in memory.
type Store struct {
	path string
	mu   sync.RWMutex
	cur  Settings
}

// Open loads path if it exists.
func Open(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path)}
	if s.path == "" {
		return s, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s.cur); err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", s.path, err)
	}
	return s, nil
}

func (s *Store) Load() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) Get(key string) (string, error) {
	cur := s.Load()
	switch key {
	case KeyAPIKey:
		return cur.APIKey, nil
	case KeyQuestionSelector:
		return cur.Selector(), nil
	case KeyDomainContext:
		return cur.DomainContext, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

func (s *Store) Set(key, value string) error {
	next := s.Load()
	switch key {
	case KeyAPIKey:
		next.APIKey = value
	case KeyQuestionSelector:
		next.QuestionSelector = value
	case KeyDomainContext:
		next.DomainContext = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.Save(next)
}

// Save validates and persists a full settings document. An empty selector
// falls back to the default one. An empty API key, or the redacted form of
// the stored one, keeps the stored key; with nothing stored the key is
// required.
func (s *Store) Save(next Settings) error {
	next.APIKey = strings.TrimSpace(next.APIKey)
	next.QuestionSelector = strings.TrimSpace(next.QuestionSelector)
	next.DomainContext = strings.TrimSpace(next.DomainContext)
	if next.QuestionSelector == "" {
		next.QuestionSelector = mcq.DefaultSelector
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.cur.APIKey; stored != "" && (next.APIKey == "" || next.APIKey == s.cur.Redacted().APIKey) {
		next.APIKey = stored
	}
	if next.APIKey == "" {
		return mcq.ErrNoAPIKey
	}
	if s.path != "" {
		if err := writeFile(s.path, next); err != nil {
			return err
		}
	}
	s.cur = next
	return nil
}

func writeFile(path string, v Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, path)
}
