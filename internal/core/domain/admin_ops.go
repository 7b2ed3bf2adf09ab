package domain

import "github.com/ethereum/go-ethereum/common"

// AddTokenOp is a token registration observed in a NewToken log.
type AddTokenOp struct {
	Token    common.Address `json:"token"`
	TokenID  uint16         `json:"token_id"`
	EthHash  common.Hash    `json:"eth_hash"`
	EthBlock uint64         `json:"eth_block"`
}

// RegUserOp is a user registration observed in a RegisterUser log.
type RegUserOp struct {
	EthAddr   common.Address `json:"eth_addr"`
	UserID    uint16         `json:"user_id"`
	BjjPubkey common.Hash    `json:"bjj_pubkey"`
	EthHash   common.Hash    `json:"eth_hash"`
	EthBlock  uint64         `json:"eth_block"`
}
