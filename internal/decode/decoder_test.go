package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"chainsync/internal/model"
)

func newTestDecoder(t *testing.T, protocols []ProtocolEntry) *Decoder {
	t.Helper()
	decoder, err := NewDecoder(protocols, zap.NewNop())
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder
}

func topicFromAddress(addr common.Address) common.Hash {
	var topic common.Hash
	copy(topic[12:], addr.Bytes())
	return topic
}

func wordBytes(values ...*big.Int) []byte {
	out := make([]byte, 0, len(values)*wordSize)
	for _, v := range values {
		out = append(out, common.BigToHash(v).Bytes()...)
	}
	return out
}

func buildLog(topic0 common.Hash, topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:      append([]common.Hash{topic0}, topics...),
		Data:        data,
		BlockNumber: 1234,
		TxHash:      common.HexToHash("0xabc1"),
		Index:       7,
	}
}

func TestDecodeERC20Transfer(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigTransfer,
		[]common.Hash{topicFromAddress(from), topicFromAddress(to)},
		wordBytes(big.NewInt(1000000)),
	)

	event, err := decoder.Decode(log, 1700000000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event == nil {
		t.Fatalf("expected event")
	}
	if event.Category != model.CategoryToken || event.Name != "Transfer" {
		t.Fatalf("classification mismatch: %v %s", event.Category, event.Name)
	}
	payload, ok := event.Payload.(model.TokenTransferData)
	if !ok {
		t.Fatalf("payload type mismatch: %T", event.Payload)
	}
	if payload.Standard != "ERC20" {
		t.Fatalf("standard mismatch: %s", payload.Standard)
	}
	if payload.Amount != "1000000" {
		t.Fatalf("amount mismatch: %s", payload.Amount)
	}
	if payload.From != from.Hex() || payload.To != to.Hex() {
		t.Fatalf("address mismatch: %+v", payload)
	}
	if event.BlockNumber != 1234 || event.LogIndex != 7 || event.Timestamp != 1700000000 {
		t.Fatalf("metadata mismatch: %+v", event)
	}
}

func TestDecodeERC721Transfer(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigTransfer,
		[]common.Hash{
			topicFromAddress(from),
			topicFromAddress(to),
			common.BigToHash(big.NewInt(42)),
		},
		nil,
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.TokenTransferData)
	if payload.Standard != "ERC721" {
		t.Fatalf("standard mismatch: %s", payload.Standard)
	}
	if payload.TokenID != "42" || payload.Amount != "1" {
		t.Fatalf("token fields mismatch: %+v", payload)
	}
}

func TestDecodeERC1155Single(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigERC1155Single,
		[]common.Hash{topicFromAddress(operator), topicFromAddress(from), topicFromAddress(to)},
		wordBytes(big.NewInt(7), big.NewInt(5)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.TokenTransferData)
	if payload.Standard != "ERC1155" {
		t.Fatalf("standard mismatch: %s", payload.Standard)
	}
	if payload.TokenID != "7" || payload.Amount != "5" {
		t.Fatalf("token fields mismatch: %+v", payload)
	}
	if payload.Operator != operator.Hex() {
		t.Fatalf("operator mismatch: %s", payload.Operator)
	}
}

func TestDecodeERC1155BatchMarker(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigERC1155Batch,
		[]common.Hash{topicFromAddress(operator), topicFromAddress(from), topicFromAddress(to)},
		wordBytes(big.NewInt(64), big.NewInt(128)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.TokenTransferData)
	if payload.Standard != "ERC1155_BATCH" {
		t.Fatalf("standard mismatch: %s", payload.Standard)
	}
	if payload.Amount != "0" || payload.TokenID != "" {
		t.Fatalf("marker fields mismatch: %+v", payload)
	}
}

func TestDecodeSkipsUnknownLogs(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	event, err := decoder.Decode(types.Log{}, 0)
	if err != nil || event != nil {
		t.Fatalf("empty topics should be skipped: %v %v", event, err)
	}

	unknown := buildLog(common.HexToHash("0xdead"), nil, nil)
	event, err = decoder.Decode(unknown, 0)
	if err != nil || event != nil {
		t.Fatalf("unknown signature should be skipped: %v %v", event, err)
	}
}

func TestDecodeShortDataFails(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigTransfer,
		[]common.Hash{topicFromAddress(from), topicFromAddress(to)},
		[]byte{0x01, 0x02, 0x03},
	)

	event, err := decoder.Decode(log, 0)
	if err == nil {
		t.Fatalf("expected error for short data, got %+v", event)
	}
}

func TestDecodeV2Swap(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigUniswapV2Swap,
		[]common.Hash{topicFromAddress(sender), topicFromAddress(recipient)},
		wordBytes(big.NewInt(0), big.NewInt(500), big.NewInt(450), big.NewInt(0)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.SwapData)
	if payload.DexType != "UniswapV2" {
		t.Fatalf("dex type mismatch: %s", payload.DexType)
	}
	if payload.AmountIn != "500" || payload.AmountOut != "450" {
		t.Fatalf("amount direction mismatch: %+v", payload)
	}
}

func TestDecodeV3SwapSignedAmounts(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	// amount0 is -100 in two's complement, so token1 is the input side.
	negative := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(100))
	data := make([]byte, 0, 2*wordSize)
	raw := negative.Bytes()
	padded := make([]byte, wordSize)
	copy(padded[wordSize-len(raw):], raw)
	data = append(data, padded...)
	data = append(data, common.BigToHash(big.NewInt(250)).Bytes()...)

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := buildLog(sigUniswapV3Swap,
		[]common.Hash{topicFromAddress(sender), topicFromAddress(recipient)},
		data,
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.SwapData)
	if payload.DexType != "UniswapV3" {
		t.Fatalf("dex type mismatch: %s", payload.DexType)
	}
	if payload.Amount0 != "-100" || payload.Amount1 != "250" {
		t.Fatalf("signed amounts mismatch: %+v", payload)
	}
	if payload.AmountIn != "250" || payload.AmountOut != "100" {
		t.Fatalf("direction mismatch: %+v", payload)
	}
}

func TestDecodeLiquidityBurnV3(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	provider := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := buildLog(sigUniswapV3Burn,
		[]common.Hash{topicFromAddress(provider)},
		wordBytes(big.NewInt(111), big.NewInt(222)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.LiquidityData)
	if payload.DexType != "UniswapV3" || payload.EventType != "burn" {
		t.Fatalf("classification mismatch: %+v", payload)
	}
	if payload.Amount0 != "111" || payload.Amount1 != "222" {
		t.Fatalf("amounts mismatch: %+v", payload)
	}
	if payload.Provider != provider.Hex() {
		t.Fatalf("provider mismatch: %s", payload.Provider)
	}
}

func TestDecodeLendingBySignatureFamily(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	user := common.HexToAddress("0x2222222222222222222222222222222222222222")
	asset := common.HexToAddress("0x5555555555555555555555555555555555555555")
	log := buildLog(sigAaveDeposit,
		[]common.Hash{topicFromAddress(user), topicFromAddress(asset)},
		wordBytes(big.NewInt(9000)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.LendingData)
	if payload.Protocol != "Aave" || payload.EventType != "supply" {
		t.Fatalf("classification mismatch: %+v", payload)
	}
	if payload.Token != asset.Hex() || payload.Amount != "9000" {
		t.Fatalf("fields mismatch: %+v", payload)
	}
}

func TestDecodeStakingWithReward(t *testing.T) {
	decoder := newTestDecoder(t, nil)

	staker := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := buildLog(sigStakingDeposit,
		[]common.Hash{topicFromAddress(staker)},
		wordBytes(big.NewInt(5000), big.NewInt(12)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.StakingData)
	if payload.EventType != "stake" {
		t.Fatalf("event type mismatch: %s", payload.EventType)
	}
	if payload.Amount != "5000" || payload.Reward != "12" {
		t.Fatalf("fields mismatch: %+v", payload)
	}
}

func TestDecodeYieldUsesProtocolAllowList(t *testing.T) {
	farm := "0x1111111111111111111111111111111111111111"
	decoder := newTestDecoder(t, []ProtocolEntry{{Name: "PancakeFarm", Address: farm}})

	farmer := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := buildLog(sigYieldHarvest,
		[]common.Hash{topicFromAddress(farmer)},
		wordBytes(big.NewInt(777)),
	)

	event, err := decoder.Decode(log, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := event.Payload.(model.YieldData)
	if payload.Protocol != "PancakeFarm" {
		t.Fatalf("protocol mismatch: %s", payload.Protocol)
	}
	if payload.EventType != "harvest" || payload.Amount != "777" {
		t.Fatalf("fields mismatch: %+v", payload)
	}
}

func TestParseProtocolList(t *testing.T) {
	entries, err := ParseProtocolList([]string{
		"Venus=0x1111111111111111111111111111111111111111",
		" PancakeFarm = 0x2222222222222222222222222222222222222222 ",
		"",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "Venus" || entries[1].Name != "PancakeFarm" {
		t.Fatalf("names mismatch: %+v", entries)
	}

	if _, err := ParseProtocolList([]string{"Broken=notanaddress"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
	if _, err := ParseProtocolList([]string{"missing-separator"}); err == nil {
		t.Fatalf("expected error for missing separator")
	}
}
