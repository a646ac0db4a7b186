package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mosaic/api/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service, *fakeStore) {
	t.Helper()
	fake := newFakeStore()
	svc := newService(testConfig(), fake, fake, nil, nil)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server, svc, fake
}

func loginToken(t *testing.T, svc *Service, name string) string {
	t.Helper()
	session, err := svc.Login(context.Background(), name)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return session.Token
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestIdentityEndpointRequiresAuth(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/identity", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestIdentityClaimAndDefaultFlow(t *testing.T) {
	server, svc, _ := newTestServer(t)
	token := loginToken(t, svc, "Jordan Reyes")

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/identity", token, map[string]any{
		"scope": "claim",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim failed: %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/identity", token, map[string]any{
		"scope":      "default",
		"visibility": "blurred",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set default failed: %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/identity", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get identity failed: %d", resp.StatusCode)
	}
	if payload["defaultVisibility"] != "blurred" || payload["defaultSource"] != "preference" {
		t.Fatalf("unexpected identity payload %v", payload)
	}
	person, ok := payload["person"].(map[string]any)
	if !ok || person["name"] != "Jordan Reyes" {
		t.Fatalf("unexpected person %v", payload["person"])
	}
}

func TestIdentityNoteOverrideConflict(t *testing.T) {
	server, svc, fake := newTestServer(t)
	token := loginToken(t, svc, "Jordan Reyes")

	session, err := svc.SessionFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	seedPerson(fake, "per-1", "Jordan Reyes", "anonymized", session.UserID)
	fake.events["evt-1"] = store.Event{ID: "evt-1", Title: "Dinner", AuthorID: "usr-author"}
	fake.eventOrder = append(fake.eventOrder, "evt-1")
	fake.refs["ref-1"] = store.EventReference{ID: "ref-1", EventID: "evt-1", Type: "person", PersonID: "per-1"}

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/identity", token, map[string]any{
		"scope":       "note",
		"referenceId": "ref-1",
		"visibility":  "approved",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %v", resp.StatusCode, payload)
	}
	if payload["code"] != "INVARIANT_VIOLATION" {
		t.Fatalf("unexpected code %v", payload["code"])
	}
	details, ok := payload["details"].(map[string]any)
	if !ok || details["baseline"] != "anonymized" {
		t.Fatalf("expected baseline in details, got %v", payload["details"])
	}
}

func TestFeedNeverLeaksRawNames(t *testing.T) {
	server, svc, fake := newTestServer(t)
	authorToken := loginToken(t, svc, "Sam Lee")
	readerToken := loginToken(t, svc, "Avery Quinn")
	seedPerson(fake, "per-1", "John Smith", "anonymized", "")

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/events", authorToken, map[string]any{
		"title": "Road trip with John Smith",
		"body":  "<p>John Smith drove. Maria Lopez navigated.</p>",
		"references": []map[string]any{
			{"type": "person", "personId": "per-1", "relationship": "cousin"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create note failed: %d %v", resp.StatusCode, payload)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/feed", nil)
	req.Header.Set("Authorization", "Bearer "+readerToken)
	feedResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer feedResp.Body.Close()
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(feedResp.Body); err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if feedResp.StatusCode != http.StatusOK {
		t.Fatalf("feed status %d: %s", feedResp.StatusCode, raw.String())
	}

	body := raw.String()
	// Completeness: the serialized payload carries no raw identity, from
	// either the structured reference or the free-text mention.
	if strings.Contains(body, "John Smith") {
		t.Fatalf("referenced name leaked: %s", body)
	}
	if strings.Contains(body, "Maria Lopez") {
		t.Fatalf("mentioned name leaked: %s", body)
	}
	if !strings.Contains(body, "a cousin") {
		t.Fatalf("expected anonymized label in feed, got %s", body)
	}
}

func TestSessionRefreshRotation(t *testing.T) {
	server, svc, _ := newTestServer(t)
	session, err := svc.Login(context.Background(), "Avery Quinn")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{
		"refreshToken": session.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh failed: %d %v", resp.StatusCode, payload)
	}
	if payload["token"] == "" || payload["refreshToken"] == session.RefreshToken {
		t.Fatalf("expected rotated tokens, got %v", payload)
	}

	// The old refresh token is single-use.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{
		"refreshToken": session.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 reusing refresh token, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server, svc, _ := newTestServer(t)
	token := loginToken(t, svc, "Avery Quinn")

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/nothing", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected payload %v", payload)
	}
}
