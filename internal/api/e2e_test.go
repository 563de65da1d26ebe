package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"docqa/internal/ingest/ingesttest"
	"docqa/internal/models"
)

// E2E/Functional Tests - Test the full API flow with auth middleware

func TestE2E_DocumentQuestionWorkflow(t *testing.T) {
	ts := createTestServer(t)
	token := ts.loginAs(t, "alice", "s3cret")

	collection := uploadTestDocument(t, ts, token)
	testCurrentDocument(t, ts, token, collection)
	testAskQuestion(t, ts, token)
	testFailedQuestionKeepsSession(t, ts, token)
	testTranscript(t, ts, token)
	testReuploadRequiresDelete(t, ts, token)
	testDeleteCollection(t, ts, token, collection)
	testLogout(t, ts, token)
}

func uploadTestDocument(t *testing.T, ts *testServer, token string) string {
	w := ts.upload(t, token, ingesttest.PDF("Quarterly revenue grew by ten percent.", "Operating cost stayed flat."))
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to upload document: status %d, body %s", w.Code, w.Body.String())
	}

	var resp models.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal upload response: %v", err)
	}
	if resp.Pages != 2 {
		t.Errorf("Expected 2 pages, got %d", resp.Pages)
	}
	if resp.Chunks != 1 {
		t.Errorf("Expected 1 chunk, got %d", resp.Chunks)
	}
	if resp.Name != "report.pdf" || resp.DocumentID == "" || resp.Collection == "" {
		t.Errorf("Unexpected upload response: %+v", resp)
	}
	return resp.Collection
}

func testCurrentDocument(t *testing.T, ts *testServer, token, collection string) {
	w := ts.do(t, http.MethodGet, "/documents", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp models.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal document response: %v", err)
	}
	if resp.Collection != collection {
		t.Errorf("Expected collection %s, got %s", collection, resp.Collection)
	}
}

func testAskQuestion(t *testing.T, ts *testServer, token string) {
	w := ts.do(t, http.MethodPost, "/ask", token, models.QueryRequest{Question: "How much did revenue grow?"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal query response: %v", err)
	}
	if resp.Answer != "Revenue grew by ten percent." {
		t.Errorf("Unexpected answer %q", resp.Answer)
	}
	if len(resp.Variants) != 3 {
		t.Errorf("Expected 3 variants, got %d", len(resp.Variants))
	}
	// three variants hitting the same single chunk yield one passage
	if len(resp.Sources) != 1 {
		t.Errorf("Expected 1 source, got %d", len(resp.Sources))
	}
}

func testFailedQuestionKeepsSession(t *testing.T, ts *testServer, token string) {
	ts.llm.shouldFail.Store(true)
	w := ts.do(t, http.MethodPost, "/ask", token, models.QueryRequest{Question: "Will this fail?"})
	ts.llm.shouldFail.Store(false)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 when the model fails, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/ask", token, models.QueryRequest{Question: "And now?"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected session to remain usable, got %d", w.Code)
	}
}

func testTranscript(t *testing.T, ts *testServer, token string) {
	w := ts.do(t, http.MethodGet, "/messages", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp models.TranscriptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal transcript: %v", err)
	}
	// ask ok (2 turns), failed ask (1 turn), ask ok (2 turns)
	if resp.Count != 5 || len(resp.Messages) != 5 {
		t.Fatalf("Expected 5 turns, got %d", resp.Count)
	}
	if resp.Messages[2].Role != models.RoleUser || resp.Messages[3].Role != models.RoleUser {
		t.Errorf("Failed question should not record an assistant turn: %+v", resp.Messages)
	}
}

func testReuploadRequiresDelete(t *testing.T, ts *testServer, token string) {
	w := ts.upload(t, token, ingesttest.PDF("Another document."))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for upload over an active document, got %d", w.Code)
	}
}

func testDeleteCollection(t *testing.T, ts *testServer, token, collection string) {
	w := ts.do(t, http.MethodDelete, "/documents", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ok, _ := ts.store.HasCollection(context.Background(), collection); ok {
		t.Error("Expected collection to be removed from the store")
	}

	w = ts.do(t, http.MethodPost, "/ask", token, models.QueryRequest{Question: "Still there?"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}

	w = ts.upload(t, token, ingesttest.PDF("Another document."))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected upload to succeed after delete, got %d", w.Code)
	}
}

func testLogout(t *testing.T, ts *testServer, token string) {
	w := ts.do(t, http.MethodPost, "/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/messages", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", w.Code)
	}
}

func TestE2E_SessionsAreIsolated(t *testing.T) {
	ts := createTestServer(t)
	alice := ts.loginAs(t, "alice", "pw")
	bob := ts.loginAs(t, "bob", "pw")

	if w := ts.upload(t, alice, ingesttest.PDF("Revenue grew.")); w.Code != http.StatusCreated {
		t.Fatalf("Failed to upload: %d", w.Code)
	}

	w := ts.do(t, http.MethodPost, "/ask", bob, models.QueryRequest{Question: "What grew?"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected bob to have no document, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/messages", alice, nil)
	var resp models.TranscriptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal transcript: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("Expected alice's transcript to be untouched, got %d turns", resp.Count)
	}
}
