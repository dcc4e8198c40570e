package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func encodeWord(v *big.Int) []byte {
	raw := v.Bytes()
	out := make([]byte, wordSize)
	copy(out[wordSize-len(raw):], raw)
	return out
}

func TestWordShortData(t *testing.T) {
	if _, err := word([]byte{0x01}, 0); err == nil {
		t.Fatalf("expected error for short data")
	}
	if _, err := word(make([]byte, wordSize), 1); err == nil {
		t.Fatalf("expected error for missing second slot")
	}
}

func TestSignedWordWrapsNegative(t *testing.T) {
	encoded := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(100))
	got, err := signedWord(encodeWord(encoded), 0)
	if err != nil {
		t.Fatalf("signed word: %v", err)
	}
	if got.String() != "-100" {
		t.Fatalf("two's complement mismatch: %s", got)
	}
}

func TestSignedWordThreshold(t *testing.T) {
	// Exactly 2^255 does not wrap; only values strictly above it do.
	boundary := new(big.Int).Lsh(big.NewInt(1), 255)
	got, err := signedWord(encodeWord(boundary), 0)
	if err != nil {
		t.Fatalf("signed word: %v", err)
	}
	if got.Cmp(boundary) != 0 {
		t.Fatalf("boundary value changed: %s", got)
	}
}

func TestAddressFromTopic(t *testing.T) {
	addr := common.HexToAddress("0xAbCdEF1234567890abcdef1234567890ABCDef12")
	var topic common.Hash
	copy(topic[12:], addr.Bytes())

	if got := addressFromTopic(topic); got != addr.Hex() {
		t.Fatalf("address mismatch: %s != %s", got, addr.Hex())
	}
}

func TestAddressFromWord(t *testing.T) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	data := append(make([]byte, wordSize), encodeWord(new(big.Int).SetBytes(addr.Bytes()))...)

	got, err := addressFromWord(data, 1)
	if err != nil {
		t.Fatalf("address from word: %v", err)
	}
	if got != addr.Hex() {
		t.Fatalf("address mismatch: %s", got)
	}

	if _, err := addressFromWord(data[:wordSize], 1); err == nil {
		t.Fatalf("expected error for short data")
	}
}
