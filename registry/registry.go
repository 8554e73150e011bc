// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// ============================================================================
// DEX/MARKETS ADDRESS SCHEME - Aligned with LP Numbering (LP-9xxx)
// ============================================================================
//
// DEX precompiles use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PCII
//
// The address ends with the 16-bit LP number for easy identification.
//   P = 9 (DEX/Markets family page)
//   C = sub-family (0 = core AMM, 1 = routing, 2 = book, ...)
//   II = item within the sub-family

const (
	LXPool       = "0x0000000000000000000000000000000000009010" // LP-9010 LXPool (singleton AMM)
	LXOracle     = "0x0000000000000000000000000000000000009011" // LP-9011 LXOracle (price aggregation)
	LXRouter     = "0x0000000000000000000000000000000000009012" // LP-9012 LXRouter (swap routing)
	LXHooks      = "0x0000000000000000000000000000000000009013" // LP-9013 LXHooks (hook registry)
	LXFlash      = "0x0000000000000000000000000000000000009014" // LP-9014 LXFlash (flash loans)
	LXAggregator = "0x0000000000000000000000000000000000009015" // LP-9015 LXAggregator (multi-venue swaps)
	LXBook       = "0x0000000000000000000000000000000000009020" // LP-9020 LXBook (orderbook + matching)
	LXVault      = "0x0000000000000000000000000000000000009030" // LP-9030 LXVault (custody + margin)
)

// DEXFamilyPage is the P nibble of every DEX/markets precompile.
const DEXFamilyPage uint8 = 9

// PrecompileAddress calculates address from (P, C, II) nibbles
// Returns trailing-significant format: 0x0000000000000000000000000000000000PCII
func PrecompileAddress(p, c, ii uint8) common.Address {
	if p > 15 || c > 15 {
		return common.Address{}
	}
	selector := fmt.Sprintf("%x%x%02x", p, c, ii)
	addr := "0000000000000000000000000000000000" + selector
	return common.HexToAddress("0x" + addr)
}
