package decode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"chainsync/internal/model"
)

// decodeToken handles the shared Transfer signature plus the ERC-1155 pair.
//
// The ERC-20/721 split is a heuristic: 4 topics means ERC-721 with an indexed
// tokenId, 3 topics with non-empty data means ERC-20 with the value in data.
// Non-standard contracts can defeat this.
func (d *Decoder) decodeToken(log types.Log) (interface{}, error) {
	switch log.Topics[0] {
	case sigTransfer:
		return decodeTransfer(log)
	case sigERC1155Single:
		return decodeERC1155Single(log)
	case sigERC1155Batch:
		return decodeERC1155Batch(log)
	}
	return nil, nil
}

func decodeTransfer(log types.Log) (interface{}, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("transfer: expected at least 3 topics, got %d", len(log.Topics))
	}
	from := addressFromTopic(log.Topics[1])
	to := addressFromTopic(log.Topics[2])

	if len(log.Topics) >= 4 {
		tokenID, err := word(log.Topics[3].Bytes(), 0)
		if err != nil {
			return nil, err
		}
		return model.TokenTransferData{
			Standard: "ERC721",
			From:     from,
			To:       to,
			Amount:   "1",
			TokenID:  tokenID.String(),
		}, nil
	}

	if len(log.Data) == 0 {
		// No indexed tokenId and no data word. Treated as an ERC-721
		// transfer of a single unidentified token.
		return model.TokenTransferData{
			Standard: "ERC721",
			From:     from,
			To:       to,
			Amount:   "1",
		}, nil
	}

	value, err := word(log.Data, 0)
	if err != nil {
		return nil, err
	}
	return model.TokenTransferData{
		Standard: "ERC20",
		From:     from,
		To:       to,
		Amount:   value.String(),
	}, nil
}

func decodeERC1155Single(log types.Log) (interface{}, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("transfer_single: expected 4 topics, got %d", len(log.Topics))
	}
	tokenID, err := word(log.Data, 0)
	if err != nil {
		return nil, err
	}
	value, err := word(log.Data, 1)
	if err != nil {
		return nil, err
	}
	return model.TokenTransferData{
		Standard: "ERC1155",
		Operator: addressFromTopic(log.Topics[1]),
		From:     addressFromTopic(log.Topics[2]),
		To:       addressFromTopic(log.Topics[3]),
		Amount:   value.String(),
		TokenID:  tokenID.String(),
	}, nil
}

// decodeERC1155Batch emits a marker event without per-item ids or amounts.
// The batch payload carries two dynamic arrays and is not fully decoded;
// this is a documented limitation, not an oversight.
func decodeERC1155Batch(log types.Log) (interface{}, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("transfer_batch: expected 4 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 2*wordSize {
		return nil, fmt.Errorf("transfer_batch: data too short: %d", len(log.Data))
	}
	return model.TokenTransferData{
		Standard: "ERC1155_BATCH",
		Operator: addressFromTopic(log.Topics[1]),
		From:     addressFromTopic(log.Topics[2]),
		To:       addressFromTopic(log.Topics[3]),
		Amount:   "0",
	}, nil
}
