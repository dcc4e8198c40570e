package decode

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"chainsync/internal/model"
)

// ProtocolEntry names a known protocol contract.
type ProtocolEntry struct {
	Name    string
	Address string
}

// Decoder classifies logs against the static signature table and extracts
// fields by fixed byte offsets. It is stateless apart from the protocol
// allow-list.
type Decoder struct {
	protocols map[common.Address]string
	logger    *zap.Logger
}

// NewDecoder builds a decoder. Entries with invalid addresses are rejected.
func NewDecoder(protocols []ProtocolEntry, logger *zap.Logger) (*Decoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	byAddr := make(map[common.Address]string, len(protocols))
	for _, entry := range protocols {
		if !common.IsHexAddress(entry.Address) {
			return nil, errInvalidProtocolAddress(entry)
		}
		byAddr[common.HexToAddress(entry.Address)] = entry.Name
	}
	return &Decoder{protocols: byAddr, logger: logger}, nil
}

// CanDecode reports whether topic0 is in the signature table.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := signatures[topic0]
	return ok
}

// Decode converts a log into at most one Event. A nil, nil return means the
// log is not one of ours (empty topics or unknown signature) and must be
// skipped. An error means a matched log had an unexpected shape; callers
// log it at debug level and continue.
func (d *Decoder) Decode(log types.Log, timestamp uint64) (*model.Event, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	sig, ok := signatures[log.Topics[0]]
	if !ok {
		return nil, nil
	}

	var payload interface{}
	var err error
	switch sig.category {
	case model.CategoryToken:
		payload, err = d.decodeToken(log)
	case model.CategorySwap:
		payload, err = d.decodeSwap(log)
	case model.CategoryLiquidity:
		payload, err = d.decodeLiquidity(log, sig.name)
	case model.CategoryLending:
		payload, err = d.decodeLending(log)
	case model.CategoryStaking:
		payload, err = d.decodeStaking(log, sig.name)
	case model.CategoryYield:
		payload, err = d.decodeYield(log, sig.name)
	}
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	return &model.Event{
		Category:    sig.category,
		Name:        sig.name,
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		Timestamp:   timestamp,
		Contract:    log.Address.Hex(),
		Payload:     payload,
	}, nil
}

// protocolName resolves the emitting contract against the allow-list.
// Unmatched contracts are a taxonomy gap, not an error.
func (d *Decoder) protocolName(address common.Address) string {
	if name, ok := d.protocols[address]; ok {
		return name
	}
	return "Unknown"
}

type invalidProtocolError struct {
	entry ProtocolEntry
}

func (e invalidProtocolError) Error() string {
	return "invalid protocol address for " + e.entry.Name + ": " + e.entry.Address
}

func errInvalidProtocolAddress(entry ProtocolEntry) error {
	return invalidProtocolError{entry: entry}
}

// ParseProtocolList parses "Name=0xaddress" pairs from config.
func ParseProtocolList(items []string) ([]ProtocolEntry, error) {
	entries := make([]ProtocolEntry, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, addr, found := strings.Cut(item, "=")
		if !found || !common.IsHexAddress(strings.TrimSpace(addr)) {
			return nil, errInvalidProtocolAddress(ProtocolEntry{Name: item, Address: addr})
		}
		entries = append(entries, ProtocolEntry{
			Name:    strings.TrimSpace(name),
			Address: strings.TrimSpace(addr),
		})
	}
	return entries, nil
}
