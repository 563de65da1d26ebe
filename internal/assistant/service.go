// Package assistant is the core facade the HTTP and CLI surfaces call into.
// It ties credentials, sessions, ingestion and the question pipeline together.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/credentials"
	apperrors "docqa/internal/errors"
	"docqa/internal/ingest"
	"docqa/internal/models"
	"docqa/internal/rag"
	"docqa/internal/session"
)

// Extractor turns PDF bytes into text blocks.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*ingest.Extraction, error)
}

// Indexer builds and tears down document indexes.
type Indexer interface {
	Build(ctx context.Context, chunks []models.Chunk) (*rag.Index, error)
	Delete(ctx context.Context, idx *rag.Index) error
}

// Answerer runs the question pipeline against an index.
type Answerer interface {
	Ask(ctx context.Context, idx *rag.Index, question string) (*rag.Answer, error)
}

type Service struct {
	credentials *credentials.Store
	sessions    *session.Manager
	extractor   Extractor
	chunker     *ingest.Chunker
	indexer     Indexer
	answerer    Answerer
}

func NewService(
	creds *credentials.Store,
	sessions *session.Manager,
	extractor Extractor,
	chunker *ingest.Chunker,
	indexer Indexer,
	answerer Answerer,
) *Service {
	return &Service{
		credentials: creds,
		sessions:    sessions,
		extractor:   extractor,
		chunker:     chunker,
		indexer:     indexer,
		answerer:    answerer,
	}
}

// Register creates an account. A taken username yields ErrUserExists.
func (s *Service) Register(username, email, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return apperrors.ErrValidation.WithMessage("Username and password are required")
	}
	if !s.credentials.Register(username, email, password) {
		return apperrors.ErrUserExists
	}
	return nil
}

// Login checks the password and opens a new session.
func (s *Service) Login(username, password string) (*session.Context, error) {
	if err := s.credentials.Verify(username, password); err != nil {
		slog.Warn("login failed", "username", username, "reason", err)
		return nil, apperrors.ErrInvalidCredentials.WithCause(err)
	}
	sess := s.sessions.Create(username)
	slog.Info("user logged in", "username", username, "session", sess.ID)
	return sess, nil
}

// Session returns the live session for token.
func (s *Service) Session(token string) (*session.Context, error) {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return sess, nil
}

// Logout ends the session and removes its index, if any. The session stays
// valid when ctx ends before the session is free.
func (s *Service) Logout(ctx context.Context, token string) error {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return apperrors.ErrInvalidToken
	}
	if err := sess.Acquire(ctx); err != nil {
		return err
	}
	defer sess.Release()

	// a concurrent logout may have won while we waited
	if _, ok := s.sessions.Remove(token); !ok {
		return apperrors.ErrInvalidToken
	}

	if doc := sess.TakeDocument(); doc != nil {
		if err := s.indexer.Delete(context.WithoutCancel(ctx), doc.Index); err != nil && !errors.Is(err, apperrors.ErrNoIndex) {
			slog.Error("tearing down index on logout", "session", sess.ID, "error", err)
			return err
		}
	}
	slog.Info("user logged out", "username", sess.Username, "session", sess.ID)
	return nil
}

// Upload ingests a PDF and builds its index. A session holds at most one
// document; the previous one must be deleted first.
func (s *Service) Upload(ctx context.Context, sess *session.Context, name string, data []byte) (*session.Document, error) {
	if err := sess.Acquire(ctx); err != nil {
		return nil, err
	}
	defer sess.Release()

	if sess.Document() != nil {
		return nil, apperrors.ErrSessionBusy
	}

	ext, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	chunks := s.chunker.Chunk(docID, ext.Blocks)

	started := time.Now()
	idx, err := s.indexer.Build(ctx, chunks)
	if err != nil {
		slog.Error("index build failed", "session", sess.ID, "document", name, "error", err)
		return nil, err
	}

	doc := &session.Document{
		ID:         docID,
		Name:       name,
		Source:     data,
		PageCount:  ext.PageCount,
		Index:      idx,
		UploadedAt: time.Now().UTC(),
	}
	sess.SetDocument(doc)

	slog.Info("document uploaded",
		"session", sess.ID,
		"document", name,
		"pages", ext.PageCount,
		"chunks", len(chunks),
		"duration", time.Since(started),
	)
	return doc, nil
}

// Ask answers one question about the session's document. The question is
// recorded in the transcript; the answer only when there is one.
func (s *Service) Ask(ctx context.Context, sess *session.Context, question string) (*rag.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrValidation.WithMessage("Question must not be empty")
	}

	if err := sess.Acquire(ctx); err != nil {
		return nil, err
	}
	defer sess.Release()

	doc := sess.Document()
	if doc == nil {
		return nil, apperrors.ErrNoIndex.WithMessage("Upload a PDF before asking questions")
	}

	sess.Append(models.RoleUser, question)

	answer, err := s.answerer.Ask(ctx, doc.Index, question)
	if err != nil {
		return nil, err
	}

	sess.Append(models.RoleAssistant, answer.Text)
	return answer, nil
}

// DeleteCollection tears down the session's index. The document is only
// forgotten once its collection is gone, so a storage failure can be retried.
func (s *Service) DeleteCollection(ctx context.Context, sess *session.Context) error {
	if err := sess.Acquire(ctx); err != nil {
		return err
	}
	defer sess.Release()

	doc := sess.Document()
	if doc == nil {
		return apperrors.ErrNoIndex.WithMessage("No document to delete")
	}

	err := s.indexer.Delete(ctx, doc.Index)
	if err != nil && !errors.Is(err, apperrors.ErrNoIndex) {
		return err
	}
	sess.TakeDocument()

	slog.Info("collection deleted", "session", sess.ID, "document", doc.Name)
	return nil
}

// Transcript returns the session's conversation so far.
func (s *Service) Transcript(sess *session.Context) []models.Turn {
	return sess.Transcript()
}

// LiveCollections returns the collection names owned by open sessions.
func (s *Service) LiveCollections() map[string]bool {
	live := make(map[string]bool)
	for _, sess := range s.sessions.All() {
		if doc := sess.Document(); doc != nil && doc.Index != nil {
			live[doc.Index.Collection] = true
		}
	}
	return live
}

// Shutdown tears down every open session's index.
func (s *Service) Shutdown(ctx context.Context) {
	for _, sess := range s.sessions.All() {
		if err := s.Logout(ctx, sess.ID); err != nil {
			slog.Warn("closing session", "session", sess.ID, "error", err)
		}
	}
}
