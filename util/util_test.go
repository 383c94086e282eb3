package util

import (
	"bytes"
	"testing"
)

func TestCalHashIsDeterministic(t *testing.T) {
	a := CalHash([]byte("hello"))
	b := CalHash([]byte("hello"))
	if a != b {
		t.Fatalf("CalHash not deterministic: %s vs %s", a, b)
	}
	if CalHash([]byte("hello")) == CalHash([]byte("world")) {
		t.Fatal("distinct inputs produced the same hash")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	prv, pub := GetKeyPair()
	data := []byte("request envelope payload")

	sig := Sign(data, prv)
	if !VerifySign(data, sig, pub) {
		t.Fatal("expected signature to verify")
	}
	if VerifySign([]byte("tampered"), sig, pub) {
		t.Fatal("expected verification to fail on tampered data")
	}
}

func TestLedgerCompressRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte(`{"index":1,"amount":5}`), 200)

	compressed, err := CompressLedger(original)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Fatalf("expected compression to shrink repetitive input: %d >= %d", len(compressed), len(original))
	}

	decompressed, err := DecompressLedger(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Fatal("round trip did not reproduce the original bytes")
	}
}

func TestIsExist(t *testing.T) {
	if !IsExist(".") {
		t.Fatal("expected current directory to exist")
	}
	if IsExist("/definitely/not/a/real/path/xyz") {
		t.Fatal("expected nonexistent path to report false")
	}
}
