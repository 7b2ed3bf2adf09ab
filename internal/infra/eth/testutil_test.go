package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var testContractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")

func newTestContract(t *testing.T) *Contract {
	t.Helper()
	c, err := NewContract(testContractAddr)
	require.NoError(t, err)
	return c
}
