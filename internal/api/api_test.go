package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lennartp/chatstore/internal/config"
	"github.com/lennartp/chatstore/internal/middleware"
	"github.com/lennartp/chatstore/internal/repository/memory"
	"github.com/lennartp/chatstore/internal/store"
	"go.uber.org/zap"
)

// fakeResolver records uploads and mints deterministic URLs.
type fakeResolver struct {
	uploads map[string][]byte
}

func (f *fakeResolver) Upload(ctx context.Context, key, contentType string, data []byte) error {
	f.uploads[key] = data
	return nil
}

func (f *fakeResolver) URL(ctx context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *config.Config, *fakeResolver) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		AuthRatePerMinute: 600,
		AuthRateBurst:     100,
	}
	logger := zap.NewNop()
	mem := memory.NewStore()
	convs := store.NewConversationStore(mem, mem, store.NewHub(), nil, logger, store.Options{
		InitialBackoff: time.Millisecond,
	})
	dir := store.NewDirectory(mem, mem, logger)

	limiter := middleware.NewLimiterStore(cfg.AuthRatePerMinute, cfg.AuthRateBurst, time.Minute)
	t.Cleanup(limiter.Stop)

	resolver := &fakeResolver{uploads: map[string][]byte{}}

	router := NewRouter(Handlers{
		Auth:          NewAuthHandler(dir, cfg, logger),
		Users:         NewUserHandler(dir, logger),
		Conversations: NewConversationHandler(convs, logger),
		WS:            NewWSHandler(convs, logger),
		Media:         NewMediaHandler(resolver, logger),
		AuthLimiter:   limiter,
	}, cfg)
	return router, cfg, resolver
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signupUser(t *testing.T, r *gin.Engine, email, first, last string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email": email, "password": "password123",
		"first_name": first, "last_name": last,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup(%s) status = %d: %s", email, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("signup(%s) bad response: %s", email, w.Body.String())
	}
	return resp.Token
}

func TestSignupAndLogin(t *testing.T) {
	r, _, _ := newTestServer(t)

	signupUser(t, r, "a@x.com", "Alice", "Adams")

	// Duplicate signup is a conflict.
	w := doJSON(t, r, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email": "a@x.com", "password": "password123",
		"first_name": "Alice", "last_name": "Adams",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "a@x.com", "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "a@x.com", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-password login status = %d", w.Code)
	}

	// Unknown email gets the same response as a wrong password.
	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "nobody@x.com", "password": "password123",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown-email login status = %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/v1/conversations", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no-token status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/conversations", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage-token status = %d, want 401", w.Code)
	}
}

func TestConversationFlow(t *testing.T) {
	r, _, _ := newTestServer(t)
	tokenA := signupUser(t, r, "a@x.com", "Alice", "Adams")
	tokenB := signupUser(t, r, "b@x.com", "Bob", "Jones")

	// Empty list before anything exists.
	w := doJSON(t, r, http.MethodGet, "/v1/conversations", tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("empty list status = %d", w.Code)
	}
	var listResp struct {
		Conversations []json.RawMessage `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil || len(listResp.Conversations) != 0 {
		t.Fatalf("empty list body: %s", w.Body.String())
	}

	create := gin.H{
		"other_user_email": "b@x.com",
		"name":             "Bob Jones",
		"message":          gin.H{"id": "m1", "type": "text", "text": "hi"},
	}
	w = doJSON(t, r, http.MethodPost, "/v1/conversations", tokenA, create)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var createResp struct {
		ID     string `json:"id"`
		Reused bool   `json:"reused"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &createResp); err != nil {
		t.Fatalf("create body: %s", w.Body.String())
	}
	if createResp.ID != "conversation_m1" || createResp.Reused {
		t.Fatalf("create response: %+v", createResp)
	}
	convID := createResp.ID

	// A second create between the same pair reuses the thread. The
	// existing conversation is found even from the other side.
	w = doJSON(t, r, http.MethodPost, "/v1/conversations", tokenB, gin.H{
		"other_user_email": "a@x.com",
		"name":             "Alice Adams",
		"message":          gin.H{"id": "m2", "type": "text", "text": "hey"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reuse status = %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &createResp); err != nil {
		t.Fatalf("reuse body: %s", w.Body.String())
	}
	if createResp.ID != convID || !createResp.Reused {
		t.Fatalf("reuse response: %+v", createResp)
	}

	// Append a third message.
	w = doJSON(t, r, http.MethodPost, "/v1/conversations/"+convID+"/messages", tokenA, gin.H{
		"other_user_email": "b@x.com",
		"name":             "Bob Jones",
		"message":          gin.H{"id": "m3", "type": "text", "text": "how are you"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("append status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/conversations/"+convID+"/messages", tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("messages status = %d", w.Code)
	}
	var msgResp struct {
		Messages []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &msgResp); err != nil {
		t.Fatalf("messages body: %s", w.Body.String())
	}
	if len(msgResp.Messages) != 3 || msgResp.Messages[2].Content != "how are you" {
		t.Fatalf("messages: %+v", msgResp.Messages)
	}

	// Appending into a conversation that does not exist is 404.
	w = doJSON(t, r, http.MethodPost, "/v1/conversations/conversation_nope/messages", tokenA, gin.H{
		"other_user_email": "b@x.com",
		"name":             "Bob Jones",
		"message":          gin.H{"id": "m4", "type": "text", "text": "lost"},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("append-missing status = %d", w.Code)
	}

	// Delete on one side only.
	w = doJSON(t, r, http.MethodDelete, "/v1/conversations/"+convID, tokenA, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/v1/conversations/"+convID, tokenA, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}

	// B still sees the thread.
	w = doJSON(t, r, http.MethodGet, "/v1/conversations", tokenB, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil || len(listResp.Conversations) != 1 {
		t.Fatalf("counterpart list after delete: %s", w.Body.String())
	}
}

func TestUserDirectory(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := signupUser(t, r, "a@x.com", "Alice", "Adams")
	signupUser(t, r, "b@x.com", "Bob", "Jones")

	w := doJSON(t, r, http.MethodGet, "/v1/users", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("users status = %d", w.Code)
	}
	var resp struct {
		Users []struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("users body: %s", w.Body.String())
	}
	if len(resp.Users) != 2 || resp.Users[0].Email != "a-x-com" || resp.Users[0].Name != "Alice Adams" {
		t.Fatalf("users: %+v", resp.Users)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/users/exists?email=b@x.com", token, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("true")) {
		t.Fatalf("exists(b) = %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodGet, "/v1/users/exists?email=nobody@x.com", token, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("false")) {
		t.Fatalf("exists(nobody) = %d %s", w.Code, w.Body.String())
	}
}

func TestMediaUpload(t *testing.T) {
	r, _, resolver := newTestServer(t)
	token := signupUser(t, r, "a@x.com", "Alice", "Adams")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "avatar.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/media/profile", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	wantKey := "images/a-x-com_profile_picture.png"
	if _, ok := resolver.uploads[wantKey]; !ok {
		t.Fatalf("upload keys = %v, want %s", resolver.uploads, wantKey)
	}

	// URL resolution for a known prefix.
	w2 := doJSON(t, r, http.MethodGet, "/v1/media/url?key="+wantKey, token, nil)
	if w2.Code != http.StatusOK || !bytes.Contains(w2.Body.Bytes(), []byte("https://cdn.test/"+wantKey)) {
		t.Fatalf("media url = %d %s", w2.Code, w2.Body.String())
	}

	// Keys outside the known layout are rejected.
	w2 = doJSON(t, r, http.MethodGet, "/v1/media/url?key=secrets/terraform.tfstate", token, nil)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("bad-prefix status = %d", w2.Code)
	}
}
