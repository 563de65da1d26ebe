// Package session holds per-user state between requests: the loaded document,
// its index and the chat transcript.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/models"
	"docqa/internal/rag"
)

// Document is the one uploaded PDF a session works with.
type Document struct {
	ID         string
	Name       string
	Source     []byte
	PageCount  int
	Index      *rag.Index
	UploadedAt time.Time
}

// Context is the state of one logged-in user. Pipeline work on a context is
// serialised with Acquire/Release; the accessors are safe to call at any time.
type Context struct {
	ID        string
	Username  string
	CreatedAt time.Time

	work chan struct{}

	mu         sync.RWMutex
	document   *Document
	transcript []models.Turn
}

func newContext(username string) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
		work:      make(chan struct{}, 1),
	}
}

// Acquire waits until no other operation runs on this context.
func (c *Context) Acquire(ctx context.Context) error {
	select {
	case c.work <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release ends the operation started by Acquire.
func (c *Context) Release() {
	<-c.work
}

func (c *Context) Document() *Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.document
}

func (c *Context) SetDocument(doc *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.document = doc
}

// TakeDocument detaches and returns the current document.
func (c *Context) TakeDocument() *Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := c.document
	c.document = nil
	return doc
}

// Append adds a turn to the transcript.
func (c *Context) Append(role models.Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, models.Turn{
		Role:    role,
		Content: content,
		At:      time.Now().UTC(),
	})
}

// Transcript returns a copy of the turns so far, oldest first.
func (c *Context) Transcript() []models.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Turn, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Manager indexes live session contexts by token.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Context
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Context)}
}

// Create starts a new session for username. A user may hold several.
func (m *Manager) Create(username string) *Context {
	c := newContext(username)
	m.mu.Lock()
	m.sessions[c.ID] = c
	m.mu.Unlock()
	return c
}

func (m *Manager) Get(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Remove forgets the session and returns it so the caller can tear it down.
func (m *Manager) Remove(id string) (*Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return c, ok
}

// All returns every live session.
func (m *Manager) All() []*Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Context, 0, len(m.sessions))
	for _, c := range m.sessions {
		out = append(out, c)
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
