package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Slot is a single key-value location the conversation snapshot lives in
type Slot interface {
	// Read returns the stored value and whether the slot holds one
	Read() ([]byte, bool, error)

	// Write overwrites the slot
	Write(value []byte) error

	// Remove deletes the slot; removing an empty slot is not an error
	Remove() error
}

// ErrEmptySnapshot is logged when the slot holds an empty message list
var ErrEmptySnapshot = errors.New("snapshot holds no messages")

// Store owns the ordered message sequence and mirrors it into a Slot
type Store struct {
	slot     Slot
	logger   *slog.Logger
	now      func() time.Time
	messages []Message
	mu       sync.Mutex
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the logger used for recovered persistence errors
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source for synthesized welcome messages
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store over slot. Call Load before use.
func NewStore(slot Slot, opts ...StoreOption) *Store {
	s := &Store{
		slot:   slot,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted snapshot. A missing, unreadable or malformed
// snapshot is replaced by the welcome message; the error is only logged.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.readSnapshot()
	if err != nil {
		s.logger.Warn("failed to load saved messages, starting fresh", "error", err)
		s.seedWelcome()
		return
	}
	if messages == nil {
		s.seedWelcome()
		return
	}

	s.messages = messages
	s.logger.Info("loaded conversation", "message_count", len(messages))
}

func (s *Store) readSnapshot() ([]Message, error) {
	data, ok, err := s.slot.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read slot: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrEmptySnapshot
	}
	return messages, nil
}

// Append adds message to the end and persists immediately. The message stays
// appended even if persisting fails.
func (s *Store) Append(message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, message)
	return s.persist()
}

// Persist overwrites the slot with the full ordered sequence
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *Store) persist() error {
	data, err := json.Marshal(s.messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := s.slot.Write(data); err != nil {
		return fmt.Errorf("failed to write slot: %w", err)
	}
	return nil
}

// Clear empties the conversation, removes the slot and re-seeds the welcome message
func (s *Store) Clear() error {
	return s.Reset(NewWelcome(s.now()))
}

// Reset removes the slot and replaces the conversation with welcome alone.
// The welcome message is not persisted until the next Append.
func (s *Store) Reset(welcome Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = []Message{welcome}
	if err := s.slot.Remove(); err != nil {
		return fmt.Errorf("failed to remove slot: %w", err)
	}
	s.logger.Info("conversation cleared")
	return nil
}

// Messages returns a copy of the ordered sequence
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) seedWelcome() {
	s.messages = []Message{NewWelcome(s.now())}
}
