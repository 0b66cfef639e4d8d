package config

import (
	"testing"
)

func TestFlatten_Simple(t *testing.T) {
	m := map[string]any{
		"a": "hello",
		"b": 42.0,
	}
	got := Flatten(m)
	if got["a"] != "hello" {
		t.Errorf("expected a=hello, got %v", got["a"])
	}
	if got["b"] != 42.0 {
		t.Errorf("expected b=42, got %v", got["b"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 keys, got %d", len(got))
	}
}

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"llm": map[string]any{
			"provider": "openai",
			"api_key":  "sk-test123",
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["llm.provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", got["llm.provider"])
	}
	if got["llm.api_key"] != "sk-test123" {
		t.Errorf("expected llm.api_key=sk-test123, got %v", got["llm.api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
		},
	}
	got := Flatten(m)
	if got["a.b.c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", got["a.b.c"])
	}
	if len(got) != 1 {
		t.Errorf("expected 1 key, got %d", len(got))
	}
}

func TestUnflatten_Nested(t *testing.T) {
	flat := map[string]any{
		"llm.provider": "openai",
		"llm.api_key":  "sk-test123",
		"log_level":    "info",
	}
	got := Unflatten(flat)
	llm, ok := got["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", got["llm"])
	}
	if llm["provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", llm["provider"])
	}
	if llm["api_key"] != "sk-test123" {
		t.Errorf("expected llm.api_key=sk-test123, got %v", llm["api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir":  "/home/test/.chatpilot",
		"log_level": "debug",
		"llm": map[string]any{
			"provider": "openai",
			"api_key":  "sk-test123456",
			"model":    "gpt-4o-mini",
		},
		"whatsapp": map[string]any{
			"provider":     "evolution",
			"api_key":      "evo-key-xyz",
			"access_token": "wa-token-abc",
		},
	}

	flat := Flatten(original)
	restored := Unflatten(flat)

	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}
	if restored["log_level"] != original["log_level"] {
		t.Errorf("log_level mismatch: %v != %v", restored["log_level"], original["log_level"])
	}

	llm := restored["llm"].(map[string]any)
	origLLM := original["llm"].(map[string]any)
	if llm["provider"] != origLLM["provider"] {
		t.Errorf("llm.provider mismatch: %v != %v", llm["provider"], origLLM["provider"])
	}
	if llm["api_key"] != origLLM["api_key"] {
		t.Errorf("llm.api_key mismatch: %v != %v", llm["api_key"], origLLM["api_key"])
	}

	wa := restored["whatsapp"].(map[string]any)
	origWA := original["whatsapp"].(map[string]any)
	if wa["access_token"] != origWA["access_token"] {
		t.Errorf("whatsapp.access_token mismatch: %v != %v", wa["access_token"], origWA["access_token"])
	}
}

func TestMaskSecrets_AllSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.provider":          "openai",
		"llm.api_key":           "sk-test123456",
		"whatsapp.access_token": "EAAG-abcdef1234",
		"whatsapp.verify_token": "hub-verify-Ijkl",
		"log_level":             "info",
	}
	got := MaskSecrets(flat)

	// Non-secret should be unchanged
	if got["llm.provider"] != "openai" {
		t.Errorf("expected llm.provider=openai, got %v", got["llm.provider"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}

	// Secrets should be masked with last 4 chars
	if got["llm.api_key"] != "***3456" {
		t.Errorf("expected llm.api_key=***3456, got %v", got["llm.api_key"])
	}
	if got["whatsapp.access_token"] != "***1234" {
		t.Errorf("expected whatsapp.access_token=***1234, got %v", got["whatsapp.access_token"])
	}
	if got["whatsapp.verify_token"] != "***Ijkl" {
		t.Errorf("expected whatsapp.verify_token=***Ijkl, got %v", got["whatsapp.verify_token"])
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "",
	}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "" {
		t.Errorf("expected empty string to remain empty, got %v", got["llm.api_key"])
	}
}

func TestMaskSecrets_ShortSecret(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "ab",
	}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "***ab" {
		t.Errorf("expected ***ab for short secret, got %v", got["llm.api_key"])
	}
}

func TestIsSecretKey(t *testing.T) {
	secrets := []string{"llm.api_key", "whatsapp.access_token", "whatsapp.api_key", "whatsapp.verify_token"}
	for _, k := range secrets {
		if !IsSecretKey(k) {
			t.Errorf("expected %s to be secret", k)
		}
	}
	for _, k := range []string{"log_level", "llm.provider", "whatsapp.provider"} {
		if IsSecretKey(k) {
			t.Errorf("expected %s to not be secret", k)
		}
	}
}
