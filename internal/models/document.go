package models

import (
	"strconv"
	"time"
)

// Chunk is a bounded span of document text. Start and End are rune offsets
// into the document text the chunk was cut from.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Seq    int    `json:"seq"`
	Page   int    `json:"page"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

// ChunkID returns the identity of the seq-th chunk of a source.
func ChunkID(source string, seq int) string {
	return source + ":" + strconv.Itoa(seq)
}

// EmbeddedChunk is the unit stored in an index.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session's chat transcript.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
	Collection string `json:"collection"`
}

type QueryRequest struct {
	Question string `json:"question"`
}

type QueryResponse struct {
	Answer   string   `json:"answer"`
	Variants []string `json:"variants"`
	Sources  []Chunk  `json:"sources"`
}

type TranscriptResponse struct {
	Messages []Turn `json:"messages"`
	Count    int    `json:"count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
