package decode

import (
	"github.com/ethereum/go-ethereum/common"

	"chainsync/internal/model"
)

// Event signature hashes (keccak256 of the canonical event declaration).
// The ERC-20 and ERC-721 Transfer events share a signature; they are told
// apart by topic count and data length at decode time.
var (
	sigTransfer            = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	sigERC1155Single       = common.HexToHash("0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62")
	sigERC1155Batch        = common.HexToHash("0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb")
	sigUniswapV2Swap       = common.HexToHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")
	sigUniswapV2Mint       = common.HexToHash("0x4c209b5fc8ad50758f13e2e1088ba56a560dff690a1c6fef26394f4c03821c4f")
	sigUniswapV2Burn       = common.HexToHash("0xdccd412f0b1252819cb1fd330b93224ca42612892bb3f4f789976e6d81936496")
	sigUniswapV3Swap       = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
	sigUniswapV3Mint       = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")
	sigUniswapV3Burn       = common.HexToHash("0x0c396cd989a39f4459b5fa1aed6a9a8dcdbc45908acfd67e028cd568da98982c")
	sigCompoundSupply      = common.HexToHash("0x13ed6866d4e1ee6da46f845c46d7e6760bf187c3c3f4ed1abeb9e3cd93df0f7c")
	sigCompoundWithdraw    = common.HexToHash("0x9c1007e5b81cd6a3bb6e2ccb6a0644d5cb66f6cc9a4b7f5b2b7b7b7b7b7b7b7c")
	sigCompoundBorrow      = common.HexToHash("0x13ed6866d4e1ee6da46f845c46d7e6760bf187c3c3f4ed1abeb9e3cd93df0f8d")
	sigCompoundRepay       = common.HexToHash("0x1a2a22cb034d26d1854bdc6666a5b91fe25efbbb5dcad3b0355478d6f5c362a1")
	sigAaveDeposit         = common.HexToHash("0xde6857219544bb5b7746f48ed30be6386fefc61b2f864cacf559893bf50fd951")
	sigAaveWithdraw        = common.HexToHash("0x3115d1449a7b732c986cba18244e897a450f61e1bb8d589cd2e69e6c8924f9f7")
	sigAaveBorrow          = common.HexToHash("0xc6a898309e823ee50bac64e45ca8adba6690e99e7841c3d29fba0b3e73a23e7e")
	sigAaveRepay           = common.HexToHash("0x4cdde6e09bb755c9a5589ebaec640bbfedff1362d4b255ebf8339782b9942faa")
	sigStakingDeposit      = common.HexToHash("0x90890809c654f11d6e72a28fa60149770a0d11ec6c92319d6ceb2bb0a4ea1a15")
	sigStakingWithdraw     = common.HexToHash("0x7fcf532c15f0a6db0bd6d0e038bea71d30d808c7d98cb3bf7268a95bf5081b65")
	sigStakingRewardPaid   = common.HexToHash("0xe2403640ba68fed3a2f88b7557551d1993f84b99bb10ff833f0cf8db0c5e0486")
	sigYieldDeposit        = common.HexToHash("0x5548c837ab068cf56a2c2479df0882a4922fd203edb7517321831d95078c5f62")
	sigYieldWithdraw       = common.HexToHash("0x884edad9ce6fa2440d8a54cc123490eb96d2768479d49ff9c7366125a9424364")
	sigYieldHarvest        = common.HexToHash("0x4f4f6e69dddd9e00a6b5c66e07eeb6d49e3b45344b3b3b3b3b3b3b3b3b3b3b3b")
)

type signature struct {
	category model.Category
	name     string
}

// signatures maps topic0 to its event classification. Lookup misses are
// skips, not errors.
var signatures = map[common.Hash]signature{
	sigTransfer:          {model.CategoryToken, "Transfer"},
	sigERC1155Single:     {model.CategoryToken, "TransferSingle"},
	sigERC1155Batch:      {model.CategoryToken, "TransferBatch"},
	sigUniswapV2Swap:     {model.CategorySwap, "SwapV2"},
	sigUniswapV3Swap:     {model.CategorySwap, "SwapV3"},
	sigUniswapV2Mint:     {model.CategoryLiquidity, "MintV2"},
	sigUniswapV2Burn:     {model.CategoryLiquidity, "BurnV2"},
	sigUniswapV3Mint:     {model.CategoryLiquidity, "MintV3"},
	sigUniswapV3Burn:     {model.CategoryLiquidity, "BurnV3"},
	sigCompoundSupply:    {model.CategoryLending, "supply"},
	sigCompoundWithdraw:  {model.CategoryLending, "withdraw"},
	sigCompoundBorrow:    {model.CategoryLending, "borrow"},
	sigCompoundRepay:     {model.CategoryLending, "repay"},
	sigAaveDeposit:       {model.CategoryLending, "supply"},
	sigAaveWithdraw:      {model.CategoryLending, "withdraw"},
	sigAaveBorrow:        {model.CategoryLending, "borrow"},
	sigAaveRepay:         {model.CategoryLending, "repay"},
	sigStakingDeposit:    {model.CategoryStaking, "stake"},
	sigStakingWithdraw:   {model.CategoryStaking, "unstake"},
	sigStakingRewardPaid: {model.CategoryStaking, "claim_rewards"},
	sigYieldDeposit:      {model.CategoryYield, "deposit"},
	sigYieldWithdraw:     {model.CategoryYield, "withdraw"},
	sigYieldHarvest:      {model.CategoryYield, "harvest"},
}

var compoundSigs = map[common.Hash]struct{}{
	sigCompoundSupply:   {},
	sigCompoundWithdraw: {},
	sigCompoundBorrow:   {},
	sigCompoundRepay:    {},
}

var aaveSigs = map[common.Hash]struct{}{
	sigAaveDeposit:  {},
	sigAaveWithdraw: {},
	sigAaveBorrow:   {},
	sigAaveRepay:    {},
}
