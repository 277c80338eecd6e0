package lib

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/uvensys/captchad/internal"
	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/challenge/challengetest"
)

type challengeResp struct {
	CaptchaID string          `json:"captchaId"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Solution  *string         `json:"solution"`
}

func makeChallenge(t *testing.T, ts *httptest.Server, path string) challengeResp {
	t.Helper()

	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("can't request challenge: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wanted status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var chall challengeResp
	if err := json.NewDecoder(resp.Body).Decode(&chall); err != nil {
		t.Fatalf("can't read challenge response body: %v", err)
	}

	return chall
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) (int, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("can't post to %s: %v", path, err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("can't read response body: %v", err)
	}

	return resp.StatusCode, result
}

func TestVerifyFlow(t *testing.T) {
	s := spawnServer(t, Options{})
	ts := httptest.NewServer(internal.RemoteXRealIP(true, "tcp", s))
	defer ts.Close()

	chall := makeChallenge(t, ts, "/api/challenge?type=math")

	if chall.Type != "math" {
		t.Errorf("wanted a math challenge, got %q", chall.Type)
	}

	if chall.Solution != nil {
		t.Fatal("the solution was sent to the client")
	}

	if bytes.Contains(chall.Payload, []byte(`"solution"`)) {
		t.Fatal("the payload contains a solution field")
	}

	status, body := postJSON(t, ts, "/api/verify", map[string]string{
		"captchaId": chall.CaptchaID,
		"answer":    "not a number",
	})
	if status != http.StatusOK || body["success"] != false {
		t.Fatalf("wrong answer: got %d %v", status, body)
	}

	status, body = postJSON(t, ts, "/api/verify", map[string]string{
		"captchaId": chall.CaptchaID,
		"answer":    solutionFor(t, s, chall.CaptchaID),
	})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("right answer: got %d %v", status, body)
	}

	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("no pass token in a successful verify")
	}

	status, body = postJSON(t, ts, "/api/siteverify", map[string]string{"token": token})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("siteverify: got %d %v", status, body)
	}

	if body["challengeId"] != chall.CaptchaID || body["type"] != "math" {
		t.Errorf("siteverify returned the wrong challenge: %v", body)
	}

	_, body = postJSON(t, ts, "/api/siteverify", map[string]string{"token": token})
	if body["success"] != false || body["error"] != "token_reused" {
		t.Errorf("second siteverify: got %v", body)
	}
}

func TestVerifyForm(t *testing.T) {
	s := spawnServer(t, Options{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	chall := makeChallenge(t, ts, "/api/challenge?type=text")

	resp, err := ts.Client().PostForm(ts.URL+"/api/verify", url.Values{
		"captchaId": {chall.CaptchaID},
		"answer":    {solutionFor(t, s, chall.CaptchaID)},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}

	if !body.Success {
		t.Error("form encoded verify failed")
	}
}

func TestVerifyBadRequests(t *testing.T) {
	s := spawnServer(t, Options{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	for _, tt := range []struct {
		name   string
		body   any
		status int
		errStr string
	}{
		{name: "empty object", body: map[string]string{}, status: http.StatusBadRequest, errStr: "missing_parameters"},
		{name: "no answer", body: map[string]string{"captchaId": "abc"}, status: http.StatusBadRequest, errStr: "missing_parameters"},
		{name: "no id", body: map[string]string{"answer": "abc"}, status: http.StatusBadRequest, errStr: "missing_parameters"},
		{name: "empty answer", body: map[string]string{"captchaId": "abc", "answer": ""}, status: http.StatusOK},
		{name: "not an object", body: []int{1, 2}, status: http.StatusBadRequest, errStr: "invalid_request"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			status, body := postJSON(t, ts, "/api/verify", tt.body)
			if status != tt.status {
				t.Errorf("wanted status %d, got %d", tt.status, status)
			}

			if tt.errStr != "" && body["error"] != tt.errStr {
				t.Errorf("wanted error %q, got %v", tt.errStr, body["error"])
			}

			if tt.errStr == "" && body["success"] != false {
				t.Errorf("wanted success false, got %v", body)
			}
		})
	}
}

func TestSiteVerifyBadToken(t *testing.T) {
	s := spawnServer(t, Options{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	status, body := postJSON(t, ts, "/api/siteverify", map[string]string{})
	if status != http.StatusBadRequest || body["error"] != "missing_parameters" {
		t.Errorf("missing token: got %d %v", status, body)
	}

	status, body = postJSON(t, ts, "/api/siteverify", map[string]string{"token": "garbage"})
	if status != http.StatusOK || body["success"] != false || body["error"] != "invalid_token" {
		t.Errorf("garbage token: got %d %v", status, body)
	}
}

func TestMakeChallengeFailure(t *testing.T) {
	s := spawnServer(t, Options{Assets: assets.Empty()})
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/api/challenge?type=slider", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("wanted status %d, got %d", http.StatusInternalServerError, resp.StatusCode)
	}

	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}

	if body.Error != "failed_to_create" || body.Message == "" {
		t.Errorf("wrong error body: %+v", body)
	}
}

func TestMakeChallengeAssets(t *testing.T) {
	s := spawnServer(t, Options{Assets: challengetest.Assets(t)})
	ts := httptest.NewServer(s)
	defer ts.Close()

	chall := makeChallenge(t, ts, "/api/challenge?type=image-grid&lang=de")

	var payload struct {
		Tiles []struct {
			ID    string `json:"id"`
			Image []byte `json:"image"`
		} `json:"tiles"`
		Instructions string `json:"instructions"`
	}
	if err := json.Unmarshal(chall.Payload, &payload); err != nil {
		t.Fatal(err)
	}

	if len(payload.Tiles) != 6 {
		t.Errorf("wanted 6 tiles, got %d", len(payload.Tiles))
	}

	if !strings.HasPrefix(payload.Instructions, "Wähle") {
		t.Errorf("wanted german instructions, got %q", payload.Instructions)
	}
}

func TestGzipResponses(t *testing.T) {
	s := spawnServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/challenge?type=math", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("wanted a gzip response, got headers %v", rec.Header())
	}

	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("challenge responses must not be cached")
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}

	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}

	var chall challengeResp
	if err := json.Unmarshal(data, &chall); err != nil {
		t.Fatal(err)
	}

	if chall.CaptchaID == "" {
		t.Error("no challenge id in decompressed body")
	}
}

func TestBasePrefix(t *testing.T) {
	for _, tt := range []struct {
		name       string
		basePrefix string
		path       string
	}{
		{name: "no prefix", basePrefix: "", path: "/api/challenge"},
		{name: "with prefix", basePrefix: "/myapp", path: "/myapp/api/challenge"},
		{name: "with prefix and trailing slash", basePrefix: "/myapp/", path: "/myapp/api/challenge"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := spawnServer(t, Options{BasePrefix: tt.basePrefix})

			ts := httptest.NewServer(s)
			defer ts.Close()

			chall := makeChallenge(t, ts, tt.path)
			if chall.CaptchaID == "" {
				t.Error("expected non-empty challenge id")
			}

			resp, err := ts.Client().Get(ts.URL + strings.TrimSuffix(tt.basePrefix, "/") + "/healthz")
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("healthz: wanted %d, got %d", http.StatusOK, resp.StatusCode)
			}
		})
	}
}

func TestRenderIndex(t *testing.T) {
	s := spawnServer(t, Options{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wanted %d, got %d", http.StatusOK, resp.StatusCode)
	}

	if !strings.Contains(string(data), `const apiBase = "/api/"`) {
		t.Errorf("demo page does not point at the api: %s", data)
	}

	resp, err = ts.Client().Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("wanted unknown paths to 404, got %d", resp.StatusCode)
	}
}
