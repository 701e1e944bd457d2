package ledger

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/docuchain/docuchain-backend/internal/wallet"
)

// well-formed but unfunded throwaway key
const testOperatorKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestRegistryABIParses(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	require.NoError(t, err)
	for _, method := range []string{
		"addDocument", "grantAccess", "revokeAccess", "removeDocument",
		"batchGrantAccess", "checkAccess", "getAccessList",
	} {
		_, ok := parsed.Methods[method]
		require.True(t, ok, "method %s missing", method)
	}
}

func TestNewEVMLedgerValidation(t *testing.T) {
	d, err := wallet.NewDeriver("evm-test-secret", 16, 0)
	require.NoError(t, err)
	contract := "0x1111111111111111111111111111111111111111"

	_, err = NewEVMLedger("", contract, testOperatorKey, 1337, d)
	require.Error(t, err)

	_, err = NewEVMLedger("http://127.0.0.1:8545", "not-an-address", testOperatorKey, 1337, d)
	require.Error(t, err)

	_, err = NewEVMLedger("http://127.0.0.1:8545", contract, "zz", 1337, d)
	require.Error(t, err)

	// http endpoints dial lazily, so construction succeeds without a node
	l, err := NewEVMLedger("http://127.0.0.1:8545", contract, "0x"+testOperatorKey, 1337, d)
	require.NoError(t, err)
	require.Equal(t, "evm", l.Name())
	require.NotEqual(t, common.Address{}, l.operatorAddr)
}
