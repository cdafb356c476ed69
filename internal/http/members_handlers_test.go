package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/ss14tools/verilink/internal/members"
	membersfs "github.com/ss14tools/verilink/internal/members/fs"
	"github.com/ss14tools/verilink/internal/oauth"
	"github.com/ss14tools/verilink/internal/security/apitoken"
	"github.com/ss14tools/verilink/internal/session"
)

const testAPIKey = "test-api-key"

var testJWTSecret = []byte("test-jwt-secret")

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := membersfs.New(filepath.Join(t.TempDir(), "members.json"))
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return NewRouter(Deps{
		Site:      oauth.SiteConfig{Scheme: "https", Address: "example.org", Port: 443},
		Providers: []oauth.Provider{oauth.DiscordProvider("client-1", "sec")},
		Sessions:  session.NewMemoryStore(),
		Client:    oauth.NewClient(time.Second),
		Members:   store,
		Auth:      &apitoken.Validator{APIKey: testAPIKey, JWTSecret: testJWTSecret},
	})
}

func doJSON(t *testing.T, h http.Handler, method, target, apiKey string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "203.0.113.7:51234"
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerified_ListStartsEmpty(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/verified", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list []members.Member
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	if len(list) != 0 {
		t.Fatalf("fresh list not empty: %v", list)
	}
}

func TestVerified_AddRequiresCredentials(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	payload := map[string]string{"game_user_id": "g1", "discord_id": "d1"}
	rec := doJSON(t, h, http.MethodPost, "/verified", "", payload)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/verified", "wrong-key", payload)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad key: status = %d, want 401", rec.Code)
	}
}

func TestVerified_AddGetRemoveRoundTrip(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/verified", testAPIKey, map[string]string{
		"game_user_id":   "g1",
		"game_user_name": "Urist McHands",
		"discord_id":     "d1",
		"discord_name":   "urist",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created members.Member
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("no created_at assigned")
	}

	rec = doJSON(t, h, http.MethodGet, "/verified/"+created.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/verified/"+created.ID, testAPIKey, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/verified/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestVerified_DuplicateIs409(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	payload := map[string]string{"game_user_id": "g1", "discord_id": "d1"}
	if rec := doJSON(t, h, http.MethodPost, "/verified", testAPIKey, payload); rec.Code != http.StatusCreated {
		t.Fatalf("first add status = %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/verified", testAPIKey, map[string]string{
		"game_user_id": "g1",
		"discord_id":   "d-other",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestVerified_MissingFieldsIs400(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/verified", testAPIKey, map[string]string{
		"game_user_id": "g1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerified_JWTWithWriteScope(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	mint := func(scope string) string {
		tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
			"sub":   "test",
			"scope": scope,
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		signed, err := tk.SignedString(testJWTSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}

	payload := map[string]string{"game_user_id": "g1", "discord_id": "d1"}

	req := httptest.NewRequest(http.MethodPost, "/verified", bytes.NewReader(mustJSON(t, payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mint("profile:read"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong scope: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/verified", bytes.NewReader(mustJSON(t, payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mint(apitoken.ScopeMembersWrite))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("write scope: status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
