package decode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"chainsync/internal/model"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

func (d *Decoder) decodeLending(log types.Log) (interface{}, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("lending: expected at least 2 topics, got %d", len(log.Topics))
	}
	amount, err := word(log.Data, 0)
	if err != nil {
		return nil, err
	}

	// The asset address sits in topics[2] for most layouts; a few protocols
	// pack it into the second data word instead.
	token := zeroAddress
	if len(log.Topics) > 2 {
		token = addressFromTopic(log.Topics[2])
	} else if len(log.Data) >= 2*wordSize {
		token, err = addressFromWord(log.Data, 1)
		if err != nil {
			return nil, err
		}
	}

	return model.LendingData{
		Protocol:  d.lendingProtocol(log.Address, log.Topics[0]),
		EventType: signatures[log.Topics[0]].name,
		User:      addressFromTopic(log.Topics[1]),
		Token:     token,
		Amount:    amount.String(),
	}, nil
}

// lendingProtocol prefers the signature family, falling back to the
// configured allow-list.
func (d *Decoder) lendingProtocol(address common.Address, topic0 common.Hash) string {
	if _, ok := compoundSigs[topic0]; ok {
		return "Compound"
	}
	if _, ok := aaveSigs[topic0]; ok {
		return "Aave"
	}
	return d.protocolName(address)
}

func (d *Decoder) decodeStaking(log types.Log, eventType string) (interface{}, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("staking: expected at least 2 topics, got %d", len(log.Topics))
	}
	amount, err := word(log.Data, 0)
	if err != nil {
		return nil, err
	}

	data := model.StakingData{
		Protocol:  d.protocolName(log.Address),
		EventType: eventType,
		Staker:    addressFromTopic(log.Topics[1]),
		Amount:    amount.String(),
	}
	if len(log.Topics) > 2 {
		data.Validator = addressFromTopic(log.Topics[2])
	}
	if len(log.Data) >= 2*wordSize {
		reward, err := word(log.Data, 1)
		if err != nil {
			return nil, err
		}
		data.Reward = reward.String()
	}
	return data, nil
}

func (d *Decoder) decodeYield(log types.Log, eventType string) (interface{}, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("yield: expected at least 2 topics, got %d", len(log.Topics))
	}
	amount, err := word(log.Data, 0)
	if err != nil {
		return nil, err
	}

	token := log.Address.Hex()
	if len(log.Topics) > 2 {
		token = addressFromTopic(log.Topics[2])
	}
	return model.YieldData{
		Protocol:  d.protocolName(log.Address),
		EventType: eventType,
		Farmer:    addressFromTopic(log.Topics[1]),
		Token:     token,
		Amount:    amount.String(),
	}, nil
}
