// Minimal end-to-end check of a running Base Buddies API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	rootURL = strings.TrimRight(getenv("API_URL", "http://localhost:8080"), "/")
	baseURL = rootURL + "/v1"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	checkManifest()
	checkWebhook()
	etag := listChallenges()
	checkNotModified(etag)

	token := signIn()
	prepareCreate(token)

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- public

func checkManifest() {
	var resp struct {
		Frame map[string]any `json:"frame"`
	}
	doURL("GET", rootURL+"/.well-known/farcaster.json", "", nil, &resp, http.StatusOK)
	if resp.Frame["webhookUrl"] == nil {
		log.Fatal("manifest: webhookUrl missing")
	}
}

func checkWebhook() {
	var resp struct{ Success bool }
	doURL("POST", rootURL+"/api/webhook", "", map[string]any{"event": "smoke-test"}, &resp, http.StatusOK)
	if !resp.Success {
		log.Fatal("webhook: success=false")
	}
}

func listChallenges() string {
	req, _ := http.NewRequest("GET", baseURL+"/challenges?sort=newest", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.Fatalf("list: want 200 got %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	if etag == "" {
		log.Fatal("list: no ETag")
	}
	return etag
}

func checkNotModified(etag string) {
	req, _ := http.NewRequest("GET", baseURL+"/challenges?sort=newest", nil)
	req.Header.Set("If-None-Match", etag)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotModified {
		log.Printf("list: snapshot changed between requests (got %d)", res.StatusCode)
	}
}

// ----------------------------- auth

func signIn() string {
	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	var ch struct{ Message string }
	doJSON("POST", "/auth/challenge", map[string]any{"address": addr}, &ch, http.StatusOK)
	if ch.Message == "" {
		log.Fatal("challenge: empty message")
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), key)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	var resp struct{ Token string }
	doJSON("POST", "/auth/verify", map[string]any{
		"address":   addr,
		"signature": hexutil.Encode(sig),
	}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("verify: empty token")
	}
	return resp.Token
}

// ----------------------------- writes

func prepareCreate(tok string) {
	var tx struct {
		To, Data, Value string
	}
	doAuth(tok, "POST", "/challenges/prepare", map[string]any{
		"title":           "smoke test " + uuid.NewString()[:8],
		"description":     "created by scripts/api",
		"reward":          "0.0001",
		"duration":        1,
		"maxParticipants": 2,
	}, &tx, http.StatusOK)
	if tx.Value != "200000000000000" || !strings.HasPrefix(tx.Data, "0x") {
		log.Fatalf("prepare: unexpected tx %+v", tx)
	}
	doAuth(tok, "POST", "/challenges/prepare", map[string]any{"description": "no title"}, nil, http.StatusBadRequest)
}

// ----------------------------- helpers

func doAuth(token, method, path string, body, out any, want int) {
	doURL(method, baseURL+path, token, body, out, want)
}

func doJSON(method, path string, body, out any, want int) {
	doURL(method, baseURL+path, "", body, out, want)
}

func doURL(method, url, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, url, err)
		}
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, url, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, url, err)
		}
	}
}
