package crypto

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := RandBytes(n)
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestDeriveKey_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("daemon-secret")
	k1 := DeriveKey(pw, []byte("salt-1"))
	if subtle.ConstantTimeCompare(k1, DeriveKey(pw, []byte("salt-1"))) != 1 {
		t.Fatalf("DeriveKey not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKey(pw, []byte("salt-2"))) != 0 {
		t.Fatalf("DeriveKey must change with salt")
	}
	if len(k1) != KeyLen {
		t.Fatalf("len=%d", len(k1))
	}
}

func TestSubkey_BoundToInfo(t *testing.T) {
	t.Parallel()
	master := []byte("0123456789abcdef0123456789abcdef")
	a, err := Subkey(master, "token-signing")
	if err != nil {
		t.Fatalf("Subkey: %v", err)
	}
	b, _ := Subkey(master, "credential")
	if bytes.Equal(a, b) {
		t.Fatalf("subkeys for different purposes must differ")
	}
	again, _ := Subkey(master, "token-signing")
	if !bytes.Equal(a, again) {
		t.Fatalf("Subkey not deterministic")
	}
}

func TestSealOpen(t *testing.T) {
	t.Parallel()
	key, _ := RandBytes(KeyLen)
	aad := []byte("dreamcolor_credential")

	sealed, err := Seal(key, []byte("AIza-secret"), aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("AIza-secret")) {
		t.Fatalf("plaintext visible in sealed value")
	}
	pt, err := Open(key, sealed, aad)
	if err != nil || string(pt) != "AIza-secret" {
		t.Fatalf("Open: %q %v", pt, err)
	}

	if _, err := Open(key, sealed, []byte("other")); !errors.Is(err, ErrSealed) {
		t.Fatalf("wrong aad must fail, got %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Open(key, sealed, aad); !errors.Is(err, ErrSealed) {
		t.Fatalf("tampered value must fail, got %v", err)
	}
	if _, err := Open(key, []byte{1, 2}, aad); !errors.Is(err, ErrSealed) {
		t.Fatalf("short value must fail, got %v", err)
	}
}

func TestSealWithPassphrase(t *testing.T) {
	t.Parallel()
	sealed, err := SealWithPassphrase([]byte("pw"), []byte("payload"), nil)
	if err != nil {
		t.Fatalf("SealWithPassphrase: %v", err)
	}
	pt, err := OpenWithPassphrase([]byte("pw"), sealed, nil)
	if err != nil || string(pt) != "payload" {
		t.Fatalf("OpenWithPassphrase: %q %v", pt, err)
	}
	if _, err := OpenWithPassphrase([]byte("nope"), sealed, nil); !errors.Is(err, ErrSealed) {
		t.Fatalf("wrong passphrase must fail, got %v", err)
	}
}
