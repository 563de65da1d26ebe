package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ory/herodot"

	"docqa/internal/assistant"
	"docqa/internal/auth"
	"docqa/internal/config"
	apperrors "docqa/internal/errors"
	"docqa/internal/models"
)

type requestIDKey struct{}

type Server struct {
	mux       *http.ServeMux
	assistant *assistant.Service
	config    *config.Config
	errors    *apperrors.ErrorHandler
	writer    *herodot.JSONWriter
}

func NewServer(cfg *config.Config, svc *assistant.Service) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		assistant: svc,
		config:    cfg,
		errors:    apperrors.NewErrorHandler(cfg),
		writer:    herodot.NewJSONWriter(nil),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	requireSession := auth.Middleware(s.assistant, s.writeError)

	s.mux.HandleFunc("/register", s.register)
	s.mux.HandleFunc("/login", s.login)
	s.mux.Handle("/logout", requireSession(http.HandlerFunc(s.logout)))
	s.mux.Handle("/documents", requireSession(http.HandlerFunc(s.handleDocuments)))
	s.mux.Handle("/ask", requireSession(http.HandlerFunc(s.ask)))
	s.mux.Handle("/messages", requireSession(http.HandlerFunc(s.messages)))
	s.mux.HandleFunc("/health", s.healthCheck)
}

// Handler returns the mux wrapped with request ID and logging middleware.
func (s *Server) Handler() http.Handler {
	return requestIDMiddleware(loggingMiddleware(s.mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		TLSConfig:    s.config.GetTLSConfig(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "tls", s.config.Server.TLS.Enabled)
		if s.config.Server.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(s.config.Server.TLS.CertFile, s.config.Server.TLS.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	if err := s.assistant.Register(req.Username, req.Email, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.WriteCreated(w, r, "", &models.RegisterResponse{
		Username: req.Username,
		Message:  "Registration successful",
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	sess, err := s.assistant.Login(req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.LoginResponse{Token: sess.ID, Username: sess.Username})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	sess := auth.GetSessionFromContext(r.Context())
	if err := s.assistant.Logout(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.MessageResponse{Message: "Logged out"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.uploadDocument(w, r)
	case http.MethodGet:
		s.currentDocument(w, r)
	case http.MethodDelete:
		s.deleteDocument(w, r)
	default:
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)

	name, data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperrors.ErrValidation.WithMessage("Document is too large").WithCause(err))
			return
		}
		s.writeError(w, r, apperrors.ErrValidation.WithMessage("Expected a PDF upload").WithCause(err))
		return
	}

	sess := auth.GetSessionFromContext(r.Context())
	doc, err := s.assistant.Upload(r.Context(), sess, name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.WriteCreated(w, r, "/documents", &models.UploadResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Pages:      doc.PageCount,
		Chunks:     doc.Index.Chunks,
		Collection: doc.Index.Collection,
	})
}

// readUpload accepts either a multipart form with a "file" field or a raw
// application/pdf body named by the "name" query parameter.
func readUpload(r *http.Request) (string, []byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "", nil, err
	}

	switch mediaType {
	case "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(header.Filename), data, nil
	case "application/pdf", "application/octet-stream":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", nil, err
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "document.pdf"
		}
		return filepath.Base(name), data, nil
	default:
		return "", nil, errors.New("unsupported content type " + mediaType)
	}
}

func (s *Server) currentDocument(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSessionFromContext(r.Context())
	doc := sess.Document()
	if doc == nil {
		s.writeError(w, r, apperrors.ErrNoIndex.WithMessage("No document uploaded"))
		return
	}

	s.writer.Write(w, r, &models.UploadResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Pages:      doc.PageCount,
		Chunks:     doc.Index.Chunks,
		Collection: doc.Index.Collection,
	})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSessionFromContext(r.Context())
	if err := s.assistant.DeleteCollection(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.MessageResponse{Message: "Collection deleted"})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	sess := auth.GetSessionFromContext(r.Context())
	answer, err := s.assistant.Ask(r.Context(), sess, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.QueryResponse{
		Answer:   answer.Text,
		Variants: answer.Variants,
		Sources:  answer.Passages,
	})
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	sess := auth.GetSessionFromContext(r.Context())
	turns := s.assistant.Transcript(sess)
	s.writer.Write(w, r, &models.TranscriptResponse{Messages: turns, Count: len(turns)})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	response := &models.HealthResponse{Status: "healthy"}
	s.writer.Write(w, r, response)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.HandleError(w, r, err, requestID(r.Context()))
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"request_id", requestID(r.Context()),
			"duration", time.Since(start),
		)
	})
}
