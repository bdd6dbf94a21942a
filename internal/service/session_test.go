package service

import (
	"encoding/base64"
	"testing"
)

func TestGenerateSessionID(t *testing.T) {
	token, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID() error = %v", err)
	}

	// 32 bytes base64 URL encoded with padding is 44 chars
	if len(token) != 44 {
		t.Errorf("GenerateSessionID() length = %d, want 44", len(token))
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("GenerateSessionID() is not URL-safe base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded length = %d, want 32", len(raw))
	}

	token2, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID() second call error = %v", err)
	}
	if token == token2 {
		t.Error("GenerateSessionID() produced duplicate tokens")
	}
}
