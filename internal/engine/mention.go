package engine

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// TriggerKind is the character that opened a mention session.
type TriggerKind rune

const (
	TriggerMention TriggerKind = '@'
	TriggerTopic   TriggerKind = '#'
)

// Trigger describes an active mention/tag session in free text: the kind,
// the partial query typed so far, and the byte offset of the trigger
// character.
type Trigger struct {
	Kind   TriggerKind
	Query  string
	Offset int
}

// DetectTrigger scans backward from the cursor for the nearest trigger
// character that begins a token (preceded by whitespace or start-of-text)
// with no intervening whitespace or second trigger character.
func DetectTrigger(text string, cursor int) (Trigger, bool) {
	if cursor < 0 {
		return Trigger{}, false
	}
	if cursor > len(text) {
		cursor = len(text)
	}

	pos := cursor
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:pos])
		if unicode.IsSpace(r) {
			return Trigger{}, false
		}
		if r == rune(TriggerMention) || r == rune(TriggerTopic) {
			start := pos - size
			if start > 0 {
				prev, _ := utf8.DecodeLastRuneInString(text[:start])
				if !unicode.IsSpace(prev) {
					return Trigger{}, false
				}
			}
			return Trigger{
				Kind:   TriggerKind(r),
				Query:  text[pos:cursor],
				Offset: start,
			}, true
		}
		pos -= size
	}
	return Trigger{}, false
}

// Suggestion is one candidate completion for an active trigger.
type Suggestion struct {
	ID      string
	Display string
	Insert  string
}

// DirectoryLookup resolves `@` candidates from the care directory.
type DirectoryLookup interface {
	Directory(ctx context.Context, query string) ([]model.DirectoryEntry, error)
}

// DefaultBlurGrace is how long a suggestion list outlives losing focus, so
// a pointer-driven selection on the list is not preempted by the blur.
const DefaultBlurGrace = 200 * time.Millisecond

// SuggestionSession manages one input's mention/tag autocomplete: candidate
// lookup (cached per trigger kind for the session's lifetime), filtering,
// highlight movement, and commit/close.
type SuggestionSession struct {
	directory DirectoryLookup
	topics    []model.Topic
	log       *logger.Logger
	grace     time.Duration

	mu        sync.Mutex
	cache     map[TriggerKind][]Suggestion
	open      bool
	trigger   Trigger
	cursor    int
	filtered  []Suggestion
	highlight int
	blurTimer *time.Timer
}

// NewSuggestionSession creates a session. Topics back `#` suggestions;
// the directory backs `@`.
func NewSuggestionSession(directory DirectoryLookup, topics []model.Topic, log *logger.Logger) *SuggestionSession {
	return &SuggestionSession{
		directory: directory,
		topics:    topics,
		log:       log,
		grace:     DefaultBlurGrace,
		cache:     make(map[TriggerKind][]Suggestion),
	}
}

// SetBlurGrace overrides the blur grace period.
func (s *SuggestionSession) SetBlurGrace(d time.Duration) {
	s.mu.Lock()
	s.grace = d
	s.mu.Unlock()
}

// Update re-evaluates the input after an edit or cursor move. It opens,
// refilters, or closes the suggestion list as the trigger state dictates.
func (s *SuggestionSession) Update(ctx context.Context, text string, cursor int) {
	trig, ok := DetectTrigger(text, cursor)
	if !ok {
		s.Close()
		return
	}

	candidates, err := s.candidates(ctx, trig.Kind)
	if err != nil {
		s.log.Warn("suggestion lookup failed", zap.Error(err))
		s.Close()
		return
	}

	query := strings.ToLower(trig.Query)
	var filtered []Suggestion
	for _, c := range candidates {
		if query == "" || strings.Contains(strings.ToLower(c.Display), query) {
			filtered = append(filtered, c)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelBlurLocked()
	s.open = len(filtered) > 0
	s.trigger = trig
	s.cursor = cursor
	s.filtered = filtered
	if s.highlight >= len(filtered) {
		s.highlight = len(filtered) - 1
	}
	if s.highlight < 0 {
		s.highlight = 0
	}
}

func (s *SuggestionSession) candidates(ctx context.Context, kind TriggerKind) ([]Suggestion, error) {
	s.mu.Lock()
	cached, ok := s.cache[kind]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	var out []Suggestion
	switch kind {
	case TriggerTopic:
		for _, t := range s.topics {
			out = append(out, Suggestion{
				ID:      t.Tag,
				Display: t.Label,
				Insert:  "#" + t.Tag,
			})
		}
	case TriggerMention:
		entries, err := s.directory.Directory(ctx, "")
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, Suggestion{
				ID:      e.ID,
				Display: e.Name,
				Insert:  "@" + e.Handle,
			})
		}
	}

	s.mu.Lock()
	s.cache[kind] = out
	s.mu.Unlock()
	return out, nil
}

// MoveDown advances the highlight, clamped to the last suggestion.
func (s *SuggestionSession) MoveDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	if s.highlight < len(s.filtered)-1 {
		s.highlight++
	}
}

// MoveUp retreats the highlight, clamped to the first suggestion.
func (s *SuggestionSession) MoveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	if s.highlight > 0 {
		s.highlight--
	}
}

// Commit inserts the highlighted suggestion, replacing the span from the
// trigger character to the cursor with the suggestion's insertion text and
// one trailing space. It returns the new text, the new cursor position,
// and whether a commit happened.
func (s *SuggestionSession) Commit(text string) (string, int, bool) {
	s.mu.Lock()
	if !s.open || s.highlight >= len(s.filtered) {
		s.mu.Unlock()
		return text, len(text), false
	}
	idx := s.highlight
	s.mu.Unlock()
	return s.CommitIndex(text, idx)
}

// CommitIndex commits a specific suggestion, e.g. from a pointer click.
func (s *SuggestionSession) CommitIndex(text string, index int) (string, int, bool) {
	s.mu.Lock()
	if !s.open || index < 0 || index >= len(s.filtered) {
		s.mu.Unlock()
		return text, len(text), false
	}
	sug := s.filtered[index]
	trig := s.trigger
	cursor := s.cursor
	s.closeLocked()
	s.mu.Unlock()

	if cursor > len(text) {
		cursor = len(text)
	}
	inserted := sug.Insert + " "
	newText := text[:trig.Offset] + inserted + text[cursor:]
	newCursor := trig.Offset + len(inserted)
	return newText, newCursor, true
}

// Blur schedules the list to close after the grace period, unless a commit
// or fresh update lands first.
func (s *SuggestionSession) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.cancelBlurLocked()
	s.blurTimer = time.AfterFunc(s.grace, s.Close)
}

// Focus cancels a pending blur close.
func (s *SuggestionSession) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelBlurLocked()
}

// Close dismisses the suggestion list without committing.
func (s *SuggestionSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *SuggestionSession) closeLocked() {
	s.cancelBlurLocked()
	s.open = false
	s.filtered = nil
	s.highlight = 0
}

func (s *SuggestionSession) cancelBlurLocked() {
	if s.blurTimer != nil {
		s.blurTimer.Stop()
		s.blurTimer = nil
	}
}

// Open reports whether the suggestion list is showing.
func (s *SuggestionSession) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Suggestions returns the current filtered candidates.
func (s *SuggestionSession) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Suggestion(nil), s.filtered...)
}

// Highlight returns the highlighted index.
func (s *SuggestionSession) Highlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlight
}
