package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newJSONRequest(method, path, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	r.Header.Set("Content-Type", "application/json")
	return r
}

func doJSON(t *testing.T, srv *Server, method, path, body string, want int) map[string]any {
	t.Helper()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, newJSONRequest(method, path, body))
	if w.Code != want {
		t.Fatalf("%s %s: status = %d, want %d; body: %s", method, path, w.Code, want, w.Body.String())
	}

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decode body: %v", method, path, err)
		}
	}
	return resp
}

func TestCreateIdentity(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	if resp["recovered"] != false {
		t.Errorf("recovered = %v, want false", resp["recovered"])
	}
	mnemonic, _ := resp["mnemonic"].(string)
	if len(strings.Fields(mnemonic)) != 24 {
		t.Errorf("mnemonic = %q, want 24 words", mnemonic)
	}

	ident, ok := resp["identity"].(map[string]any)
	if !ok {
		t.Fatalf("identity missing from response: %v", resp)
	}
	did, _ := ident["did"].(string)
	if !strings.HasPrefix(did, "did:kernel:") {
		t.Errorf("did = %q, want did:kernel: prefix", did)
	}
	if ident["karma"] != float64(10) {
		t.Errorf("karma = %v, want 10 from genesis", ident["karma"])
	}

	// Current identity now resolves.
	resp = doJSON(t, srv, "GET", "/api/identity", "", http.StatusOK)
	if resp["did"] != did {
		t.Errorf("current did = %v, want %v", resp["did"], did)
	}
}

func TestRecoverIdentity(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)
	mnemonic := resp["mnemonic"].(string)
	did := resp["identity"].(map[string]any)["did"].(string)

	doJSON(t, srv, "POST", "/api/identity/logout", "", http.StatusOK)
	doJSON(t, srv, "GET", "/api/identity", "", http.StatusUnauthorized)

	body := fmt.Sprintf(`{"mnemonic":%q}`, mnemonic)
	resp = doJSON(t, srv, "POST", "/api/identity/recover", body, http.StatusOK)
	if resp["recovered"] != true {
		t.Errorf("recovered = %v, want true", resp["recovered"])
	}
	if got := resp["identity"].(map[string]any)["did"]; got != did {
		t.Errorf("recovered did = %v, want %v", got, did)
	}
	if _, leaked := resp["mnemonic"]; leaked {
		t.Error("recover response must not echo the mnemonic")
	}
}

func TestRecoverRequiresMnemonic(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity/recover", `{}`, http.StatusBadRequest)
}

func TestEmitAndListPulses(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	resp := doJSON(t, srv, "POST", "/api/pulses", `{"action":"task_completed","impact":25,"context":{"task":"docs"}}`, http.StatusCreated)
	if resp["actionType"] != "task_completed" {
		t.Errorf("actionType = %v, want task_completed", resp["actionType"])
	}
	if resp["impactScore"] != float64(25) {
		t.Errorf("impactScore = %v, want uncapped 25", resp["impactScore"])
	}
	if resp["prevHash"] == nil || resp["prevHash"] == "" {
		t.Error("second pulse should link back to the genesis pulse")
	}

	resp = doJSON(t, srv, "GET", "/api/pulses?action=task_completed", "", http.StatusOK)
	pulses := resp["pulses"].([]any)
	if len(pulses) != 1 {
		t.Fatalf("got %d pulses, want 1", len(pulses))
	}

	resp = doJSON(t, srv, "GET", "/api/pulses", "", http.StatusOK)
	if n := len(resp["pulses"].([]any)); n != 2 {
		t.Errorf("got %d pulses, want genesis + emit", n)
	}

	resp = doJSON(t, srv, "GET", "/api/pulses/global", "", http.StatusOK)
	if n := len(resp["pulses"].([]any)); n != 2 {
		t.Errorf("global feed has %d pulses, want 2", n)
	}
}

func TestEmitRequiresAction(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)
	doJSON(t, srv, "POST", "/api/pulses", `{"impact":5}`, http.StatusBadRequest)
}

func TestVerifyChainEndpoint(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	for i := 0; i < 3; i++ {
		doJSON(t, srv, "POST", "/api/pulses", `{"action":"ping","impact":1}`, http.StatusCreated)
	}

	resp := doJSON(t, srv, "GET", "/api/pulses/verify", "", http.StatusOK)
	if resp["valid"] != true {
		t.Errorf("valid = %v, want true; report: %v", resp["valid"], resp)
	}
	if resp["pulseCount"] != float64(4) {
		t.Errorf("pulseCount = %v, want 4", resp["pulseCount"])
	}
}

func TestLeaderboardAndStats(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)
	doJSON(t, srv, "POST", "/api/pulses", `{"action":"task_completed","impact":5}`, http.StatusCreated)

	resp := doJSON(t, srv, "GET", "/api/leaderboard", "", http.StatusOK)
	board := resp["leaderboard"].([]any)
	if len(board) != 1 {
		t.Fatalf("leaderboard has %d entries, want 1", len(board))
	}
	if karma := board[0].(map[string]any)["karma"]; karma != float64(15) {
		t.Errorf("karma = %v, want 15", karma)
	}

	resp = doJSON(t, srv, "GET", "/api/stats", "", http.StatusOK)
	if resp["totalIdentities"] != float64(1) {
		t.Errorf("totalIdentities = %v, want 1", resp["totalIdentities"])
	}
	if resp["totalPulses"] != float64(2) {
		t.Errorf("totalPulses = %v, want 2", resp["totalPulses"])
	}
}

func TestProposalVoteFlow(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	resp := doJSON(t, srv, "POST", "/api/proposals", `{"title":"adopt emoji","description":"more emoji"}`, http.StatusCreated)
	id := resp["id"].(string)

	resp = doJSON(t, srv, "POST", "/api/proposals/"+id+"/votes", `{"choice":"for"}`, http.StatusCreated)
	if resp["weight"] == nil {
		t.Fatalf("vote response missing weight: %v", resp)
	}

	// Second vote from the same identity conflicts.
	doJSON(t, srv, "POST", "/api/proposals/"+id+"/votes", `{"choice":"for"}`, http.StatusConflict)

	doJSON(t, srv, "POST", "/api/proposals/nope/votes", `{"choice":"for"}`, http.StatusNotFound)
}

func TestStakeUnlockTooEarly(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	resp := doJSON(t, srv, "POST", "/api/stakes", `{"amount":100,"duration_days":30}`, http.StatusCreated)
	id := resp["id"].(string)

	doJSON(t, srv, "POST", "/api/stakes/"+id+"/unlock", "", http.StatusGone)
	doJSON(t, srv, "POST", "/api/stakes", `{"amount":-1}`, http.StatusBadRequest)
}

func TestChannelMessageFlow(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	resp := doJSON(t, srv, "POST", "/api/channels", `{"name":"general"}`, http.StatusCreated)
	id := resp["id"].(string)

	doJSON(t, srv, "POST", "/api/channels/"+id+"/messages", `{"content":"hello"}`, http.StatusCreated)

	resp = doJSON(t, srv, "GET", "/api/channels/"+id+"/messages", "", http.StatusOK)
	msgs := resp["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if content := msgs[0].(map[string]any)["content"]; content != "hello" {
		t.Errorf("content = %v, want hello", content)
	}

	doJSON(t, srv, "POST", "/api/channels/missing/messages", `{"content":"hi"}`, http.StatusNotFound)
}

func TestFeedReactionFlow(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)

	resp := doJSON(t, srv, "POST", "/api/feed", `{"content":"first post","tags":["meta"]}`, http.StatusCreated)
	id := resp["id"].(string)

	resp = doJSON(t, srv, "POST", "/api/feed/"+id+"/reactions", `{"reaction":"fire"}`, http.StatusOK)
	reactions := resp["reactions"].(map[string]any)
	if len(reactions["fire"].([]any)) != 1 {
		t.Errorf("reactions = %v, want one fire", reactions)
	}

	resp = doJSON(t, srv, "GET", "/api/feed", "", http.StatusOK)
	if n := len(resp["posts"].([]any)); n != 1 {
		t.Errorf("feed has %d posts, want 1", n)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)
	doJSON(t, srv, "POST", "/api/pulses", `{"action":"ping","impact":1}`, http.StatusCreated)

	resp := doJSON(t, srv, "GET", "/api/export", "", http.StatusOK)
	if resp["version"] != "1.2" {
		t.Errorf("version = %v, want 1.2", resp["version"])
	}
	if resp["identity"] == nil {
		t.Error("export missing identity")
	}
	if n := len(resp["pulses"].([]any)); n != 2 {
		t.Errorf("export has %d pulses, want 2", n)
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := testServer(t)
	doJSON(t, srv, "POST", "/api/identity", `{}`, http.StatusCreated)
	doJSON(t, srv, "POST", "/api/reset", "", http.StatusOK)
	doJSON(t, srv, "GET", "/api/identity", "", http.StatusUnauthorized)
}
