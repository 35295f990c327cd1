package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHS256RoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(NewClaims("user-1", "therapist", time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	v := NewVerifier(VerifierConfig{Secret: secret})
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "therapist" {
		t.Fatalf("claims mismatch: got %+v", claims)
	}

	if _, err := NewVerifier(VerifierConfig{Secret: "wrong-secret"}).Verify(token); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(NewClaims("user-1", "admin", -time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := NewVerifier(VerifierConfig{Secret: secret}).Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyRejectsMissingExpiry(t *testing.T) {
	secret := "test-secret"
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}, Role: "admin"}
	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := NewVerifier(VerifierConfig{Secret: secret}).Verify(token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "kid-1",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, NewClaims("user-2", "admin", time.Hour))
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign rs256 failed: %v", err)
	}

	v := NewVerifier(VerifierConfig{JWKS: NewJWKSClient(srv.URL, time.Minute)})
	claims, err := v.Verify(signed)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-2" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}

	noJWKS := NewVerifier(VerifierConfig{Secret: "s"})
	if _, err := noJWKS.Verify(signed); err == nil {
		t.Fatal("expected rs256 token to fail without jwks")
	}
}
