package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/louisbranch/didregistry/internal/platform/config"
	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testConfig(now time.Time) Config {
	return Config{
		Key:      testKey,
		Issuer:   DefaultIssuer,
		Audience: DefaultAudience,
		Now:      func() time.Time { return now },
	}
}

func TestSettingsConfig(t *testing.T) {
	var raw Settings
	err := config.ParseEnvFrom(&raw, map[string]string{
		"DIDREGISTRY_AUTH_HMAC_KEY": base64.StdEncoding.EncodeToString(testKey),
	})
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	cfg, err := raw.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if string(cfg.Key) != string(testKey) {
		t.Fatalf("key = %q", cfg.Key)
	}
	if cfg.Issuer != DefaultIssuer || cfg.Audience != DefaultAudience {
		t.Fatalf("issuer/audience = %q/%q", cfg.Issuer, cfg.Audience)
	}
}

func TestSettingsConfigRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "missing", key: ""},
		{name: "not base64", key: "%%%"},
		{name: "short", key: base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (Settings{HMACKey: tt.key}).Config(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	cfg := testConfig(now)

	issuer, err := NewIssuer(cfg, 0)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	subject, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "alice" {
		t.Fatalf("subject = %q, want alice", subject)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	cfg := testConfig(now)
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	sign := func(claims jwt.RegisteredClaims, key []byte) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Subject:   "alice",
			Audience:  jwt.ClaimStrings{DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := valid()
	wrongAudience.Audience = jwt.ClaimStrings{"other"}
	noSubject := valid()
	noSubject.Subject = ""
	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong key", token: sign(valid(), []byte(strings.Repeat("x", 32)))},
		{name: "expired", token: sign(expired, testKey)},
		{name: "wrong issuer", token: sign(wrongIssuer, testKey)},
		{name: "wrong audience", token: sign(wrongAudience, testKey)},
		{name: "no subject", token: sign(noSubject, testKey)},
		{name: "no expiry", token: sign(noExpiry, testKey)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := apperrors.GetCode(err); code != apperrors.CodeCallerUnauthenticated {
				t.Fatalf("code = %s, want %s", code, apperrors.CodeCallerUnauthenticated)
			}
		})
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	verifier, err := NewVerifier(testConfig(now))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "alice",
		Audience:  jwt.ClaimStrings{DefaultAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected algorithm error")
	}
}

func TestNewVerifierRequiresKey(t *testing.T) {
	if _, err := NewVerifier(Config{Issuer: "i", Audience: "a"}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestIssueRequiresPrincipal(t *testing.T) {
	issuer, err := NewIssuer(testConfig(time.Now()), time.Minute)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if _, err := issuer.Issue(" "); err == nil {
		t.Fatal("expected principal error")
	}
}
