package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"research-assistant/internal/helper"
)

// Manager keeps sessions in memory by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pipeline Pipeline
	quiz     QuizMaker
}

func NewManager(pipeline Pipeline, quiz QuizMaker) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		pipeline: pipeline,
		quiz:     quiz,
	}
}

func (m *Manager) Create() (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	s := New(id, m.pipeline, m.quiz)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Debug().Str("session", id).Msg("Created session")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
