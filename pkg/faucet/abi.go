package faucet

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// ABI is the Solidity-compatible interface of the faucet. The same selectors
// are served by the native contract and by deployed EVM bytecode.
var ABI abi.ABI

// runtimeCode is what the environment reports as the faucet code.
var runtimeCode []byte

const (
	MethodOwner       = "owner"
	MethodWithdraw    = "withdraw"
	MethodWithdrawAll = "withdrawAll"
	MethodDestroy     = "destroyFaucet"
)

const abiJSON = `[
	{"inputs":[],"stateMutability":"payable","type":"constructor"},
	{"inputs":[],"name":"owner","outputs":[{"internalType":"address payable","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"withdrawAll","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"destroyFaucet","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"stateMutability":"payable","type":"receive"}
]`

func init() {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(err)
	}
	ABI = parsed
	runtimeCode = crypto.Keccak256([]byte(abiJSON))
}
