// Package util holds small cryptographic and encoding helpers shared
// across the node and registry processes: hashing, an RSA keypair used
// by net.PeerClient/PeerServer to sign and verify peer envelopes, and
// zstd compression for ledger exports.
package util

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/DataDog/zstd"
	"github.com/cloudflare/cfssl/log"
	jsoniter "github.com/json-iterator/go"
)

// FastestJson is the jsoniter codec used anywhere a caller wants the
// stdlib-compatible API without its reflection overhead.
var FastestJson = jsoniter.ConfigCompatibleWithStandardLibrary

// CalHash returns the hex-encoded SHA-256 digest of data.
func CalHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// IsExist reports whether path exists on disk. Neither binary calls it;
// nodes always generate a fresh keypair at startup.
func IsExist(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	log.Info(err)
	return false
}

// GetKeyPair generates a fresh RSA-1024 keypair, PEM-encoded, for a
// node to sign its outbound peer messages.
func GetKeyPair() (prvkey, pubkey []byte) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		panic(err)
	}
	derStream := x509.MarshalPKCS1PrivateKey(privateKey)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: derStream}
	prvkey = pem.EncodeToMemory(block)

	derPkix, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		panic(err)
	}
	block = &pem.Block{Type: "PUBLIC KEY", Bytes: derPkix}
	pubkey = pem.EncodeToMemory(block)
	return
}

// Sign produces an RSA-PKCS1v15/SHA-256 signature over data.
func Sign(data []byte, keyBytes []byte) []byte {
	h := sha256.New()
	h.Write(data)
	hashed := h.Sum(nil)

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		panic(errors.New("private key error"))
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		log.Errorf("parse private key: %v", err)
		panic(err)
	}

	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed)
	if err != nil {
		panic(fmt.Errorf("sign: %w", err))
	}
	return signature
}

// VerifySign checks an RSA-PKCS1v15/SHA-256 signature over data.
func VerifySign(data, signData, keyBytes []byte) bool {
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		panic(errors.New("public key error"))
	}
	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		panic(err)
	}

	hashed := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pubKey.(*rsa.PublicKey), crypto.SHA256, hashed[:], signData); err != nil {
		log.Info("signature verification failed")
		return false
	}
	return true
}

// CompressLedger zstd-compresses an already-serialized ledger export,
// used by the operator surface's ledger download route so a long chain
// doesn't ship uncompressed over the wire.
func CompressLedger(in []byte) ([]byte, error) {
	return zstd.CompressLevel(nil, in, 5)
}

// DecompressLedger reverses CompressLedger.
func DecompressLedger(in []byte) ([]byte, error) {
	return zstd.Decompress(nil, in)
}
