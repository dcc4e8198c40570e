package decode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"chainsync/internal/model"
)

// decodeSwap distinguishes the two swap shapes by signature: the V2 family
// packs four unsigned amounts, the V3 family packs two signed ones where the
// sign carries direction.
func (d *Decoder) decodeSwap(log types.Log) (interface{}, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("swap: expected 3 topics, got %d", len(log.Topics))
	}
	sender := addressFromTopic(log.Topics[1])
	recipient := addressFromTopic(log.Topics[2])

	if log.Topics[0] == sigUniswapV2Swap {
		amount0In, err := word(log.Data, 0)
		if err != nil {
			return nil, err
		}
		amount1In, err := word(log.Data, 1)
		if err != nil {
			return nil, err
		}
		amount0Out, err := word(log.Data, 2)
		if err != nil {
			return nil, err
		}
		amount1Out, err := word(log.Data, 3)
		if err != nil {
			return nil, err
		}

		amountIn, amountOut := amount0In, amount1Out
		if amount0In.Sign() == 0 {
			amountIn, amountOut = amount1In, amount0Out
		}
		return model.SwapData{
			DexType:   "UniswapV2",
			Sender:    sender,
			Recipient: recipient,
			AmountIn:  amountIn.String(),
			AmountOut: amountOut.String(),
			Amount0:   amount0In.String(),
			Amount1:   amount1In.String(),
		}, nil
	}

	amount0, err := signedWord(log.Data, 0)
	if err != nil {
		return nil, err
	}
	amount1, err := signedWord(log.Data, 1)
	if err != nil {
		return nil, err
	}

	// Negative amount means the pool paid that token out.
	amountIn, amountOut := amount0, amount1
	if amount0.Sign() < 0 {
		amountIn, amountOut = amount1, amount0
	}
	return model.SwapData{
		DexType:   "UniswapV3",
		Sender:    sender,
		Recipient: recipient,
		AmountIn:  absString(amountIn),
		AmountOut: absString(amountOut),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *Decoder) decodeLiquidity(log types.Log, name string) (interface{}, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("liquidity: expected at least 2 topics, got %d", len(log.Topics))
	}
	amount0, err := word(log.Data, 0)
	if err != nil {
		return nil, err
	}
	amount1, err := word(log.Data, 1)
	if err != nil {
		return nil, err
	}

	dexType := "UniswapV2"
	eventType := "mint"
	switch name {
	case "BurnV2":
		eventType = "burn"
	case "MintV3":
		dexType = "UniswapV3"
	case "BurnV3":
		dexType = "UniswapV3"
		eventType = "burn"
	}

	return model.LiquidityData{
		DexType:   dexType,
		EventType: eventType,
		Provider:  addressFromTopic(log.Topics[1]),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}
