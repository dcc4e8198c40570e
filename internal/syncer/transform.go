package syncer

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"chainsync/internal/model"
	"chainsync/internal/sink"
)

// Amount-like values can exceed int64, so they are written as decimal
// strings, always. Field types must stay stable for the life of the store.

func blockPoint(chainTag string, block *types.Block) sink.Point {
	gasUsed := block.GasUsed()
	gasLimit := block.GasLimit()
	utilization := 0.0
	if gasLimit > 0 {
		utilization = float64(gasUsed) / float64(gasLimit)
	}

	fields := map[string]interface{}{
		"block_number":      int64(block.NumberU64()),
		"gas_used":          int64(gasUsed),
		"gas_limit":         int64(gasLimit),
		"transaction_count": int64(len(block.Transactions())),
		"size":              int64(block.Size()),
		"gas_utilization":   utilization,
		"difficulty":        block.Difficulty().String(),
	}
	if block.BaseFee() != nil {
		fields["base_fee_per_gas"] = block.BaseFee().String()
	}

	return sink.Point{
		Measurement: "blocks",
		Tags: map[string]string{
			"chain_id": chainTag,
			"miner":    block.Coinbase().Hex(),
		},
		Fields: fields,
		Time:   blockTime(block),
	}
}

func transactionPoint(chainTag string, block *types.Block, tx *types.Transaction, receipt *types.Receipt, signer types.Signer) sink.Point {
	status := "success"
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = "failed"
	}

	from := ""
	if sender, err := types.Sender(signer, tx); err == nil {
		from = sender.Hex()
	}
	to := ""
	txType := "contract_call"
	if tx.To() != nil {
		to = tx.To().Hex()
		if tx.Value().Sign() > 0 && len(tx.Data()) == 0 {
			txType = "transfer"
		}
	} else {
		txType = "contract_creation"
	}

	fee := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(receipt.GasUsed))

	return sink.Point{
		Measurement: "transactions",
		Tags: map[string]string{
			"chain_id":         chainTag,
			"from_address":     from,
			"to_address":       to,
			"transaction_type": txType,
			"status":           status,
		},
		Fields: map[string]interface{}{
			"block_number":      int64(block.NumberU64()),
			"transaction_index": int64(receipt.TransactionIndex),
			"hash":              tx.Hash().Hex(),
			"nonce":             int64(tx.Nonce()),
			"value":             tx.Value().String(),
			"gas_limit":         int64(tx.Gas()),
			"gas_used":          int64(receipt.GasUsed),
			"gas_price":         tx.GasPrice().String(),
			"transaction_fee":   fee.String(),
			"input_data_size":   int64(len(tx.Data())),
		},
		Time: blockTime(block),
	}
}

// eventPoint maps a decoded event onto its category measurement. Payload
// amounts stay strings by the encode-once rule.
func eventPoint(chainTag string, event model.Event) sink.Point {
	tags := map[string]string{
		"chain_id": chainTag,
		"contract": event.Contract,
		"event":    event.Name,
	}
	fields := map[string]interface{}{
		"block_number": int64(event.BlockNumber),
		"tx_hash":      event.TxHash,
		"log_index":    int64(event.LogIndex),
	}

	switch payload := event.Payload.(type) {
	case model.TokenTransferData:
		tags["standard"] = payload.Standard
		tags["from_address"] = payload.From
		tags["to_address"] = payload.To
		fields["amount"] = payload.Amount
		if payload.TokenID != "" {
			fields["token_id"] = payload.TokenID
		}
		if payload.Operator != "" {
			tags["operator"] = payload.Operator
		}
	case model.SwapData:
		tags["dex_type"] = payload.DexType
		tags["sender"] = payload.Sender
		tags["recipient"] = payload.Recipient
		fields["amount_in"] = payload.AmountIn
		fields["amount_out"] = payload.AmountOut
		fields["amount0"] = payload.Amount0
		fields["amount1"] = payload.Amount1
	case model.LiquidityData:
		tags["dex_type"] = payload.DexType
		tags["event_type"] = payload.EventType
		tags["provider"] = payload.Provider
		fields["amount0"] = payload.Amount0
		fields["amount1"] = payload.Amount1
	case model.LendingData:
		tags["protocol"] = payload.Protocol
		tags["event_type"] = payload.EventType
		tags["user"] = payload.User
		tags["token"] = payload.Token
		fields["amount"] = payload.Amount
	case model.StakingData:
		tags["protocol"] = payload.Protocol
		tags["event_type"] = payload.EventType
		tags["staker"] = payload.Staker
		fields["amount"] = payload.Amount
		if payload.Validator != "" {
			tags["validator"] = payload.Validator
		}
		if payload.Reward != "" {
			fields["reward"] = payload.Reward
		}
	case model.YieldData:
		tags["protocol"] = payload.Protocol
		tags["event_type"] = payload.EventType
		tags["farmer"] = payload.Farmer
		tags["token"] = payload.Token
		fields["amount"] = payload.Amount
	}

	return sink.Point{
		Measurement: event.Category.String(),
		Tags:        tags,
		Fields:      fields,
		Time:        time.Unix(int64(event.Timestamp), 0).UTC(),
	}
}

// rawLogPoint records an undecoded log under the events measurement.
func rawLogPoint(chainTag string, log types.Log, timestamp uint64) sink.Point {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return sink.Point{
		Measurement: "events",
		Tags: map[string]string{
			"chain_id":         chainTag,
			"contract_address": log.Address.Hex(),
			"topic0":           topic0,
		},
		Fields: map[string]interface{}{
			"block_number": int64(log.BlockNumber),
			"tx_hash":      log.TxHash.Hex(),
			"log_index":    int64(log.Index),
			"topic_count":  int64(len(log.Topics)),
			"data":         hexutil.Encode(log.Data),
		},
		Time: time.Unix(int64(timestamp), 0).UTC(),
	}
}

func blockTime(block *types.Block) time.Time {
	return time.Unix(int64(block.Time()), 0).UTC()
}
