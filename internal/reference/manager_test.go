package reference_test

import (
	"errors"
	"testing"
	"time"

	"drafter/internal/reference"
	"drafter/internal/services"
)

func newManager(t *testing.T, ttl time.Duration) *reference.Manager {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	mgr, err := reference.New(key, []byte("signing-key"), ttl)
	if err != nil {
		t.Fatalf("reference.New: %v", err)
	}
	return mgr
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	mgr := newManager(t, time.Hour)
	for _, raw := range []string{
		"bucket/object/model.rvt",
		"urn:example:object:os.object:models/tower.ifc",
		"a",
	} {
		token := mgr.Encode(raw)
		got, err := mgr.Decode(token)
		if err != nil {
			t.Fatalf("Decode(%q): %v", token, err)
		}
		if got != raw {
			t.Fatalf("round trip mismatch: got %q, want %q", got, raw)
		}
	}
}

func TestDecodeRejectsMalformedToken(t *testing.T) {
	mgr := newManager(t, time.Hour)
	for _, token := range []string{"", "not!!valid", "%%%%"} {
		if _, err := mgr.Decode(token); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Decode(%q): expected validation error, got %v", token, err)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	mgr := newManager(t, time.Hour)
	token := mgr.Encode("bucket/object/model.rvt")

	ciphertext, err := mgr.Encrypt(token)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == token {
		t.Fatal("ciphertext should differ from plaintext token")
	}
	plain, err := mgr.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != token {
		t.Fatalf("round trip mismatch: got %q, want %q", plain, token)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	mgr := newManager(t, time.Hour)
	first, err := mgr.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := mgr.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct nonces to yield distinct ciphertexts")
	}
}

func TestDecryptFailsClosedOnTamper(t *testing.T) {
	mgr := newManager(t, time.Hour)
	ciphertext, err := mgr.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := "A" + ciphertext[1:]
	if tampered == ciphertext {
		tampered = "B" + ciphertext[1:]
	}
	if _, err := mgr.Decrypt(tampered); err == nil {
		t.Fatal("expected tampered ciphertext to fail")
	}
}

func TestSignVerify(t *testing.T) {
	mgr := newManager(t, time.Hour)
	token := mgr.Encode("bucket/object/model.rvt")

	signed := mgr.Sign(token, time.Minute)
	got, ok := mgr.Verify(signed)
	if !ok {
		t.Fatal("expected signed token to verify before expiry")
	}
	if got != token {
		t.Fatalf("verify returned %q, want %q", got, token)
	}
}

func TestVerifyFailsAfterExpiry(t *testing.T) {
	mgr := newManager(t, time.Hour)
	signed := mgr.Sign("token", -time.Second)
	if _, ok := mgr.Verify(signed); ok {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	mgr := newManager(t, time.Hour)
	signed := mgr.Sign("token", time.Minute)

	cases := []string{
		"",
		"only-one-part",
		signed + "x",
		signed[:len(signed)-2],
	}
	for _, candidate := range cases {
		if _, ok := mgr.Verify(candidate); ok {
			t.Fatalf("expected %q to fail verification", candidate)
		}
	}

	other := newManagerWithSigningKey(t, "different-key")
	if _, ok := other.Verify(signed); ok {
		t.Fatal("expected token signed with another key to fail")
	}
}

func newManagerWithSigningKey(t *testing.T, signingKey string) *reference.Manager {
	t.Helper()
	key := make([]byte, 32)
	mgr, err := reference.New(key, []byte(signingKey), time.Hour)
	if err != nil {
		t.Fatalf("reference.New: %v", err)
	}
	return mgr
}
