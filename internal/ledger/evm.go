package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/docuchain/docuchain-backend/internal/wallet"
	"github.com/docuchain/docuchain-backend/pkg/logger"
)

// registryABI mirrors the deployed document registry contract. Mutations are
// owner-gated inside the contract via msg.sender, so every write is signed
// with the calling user's derived wallet rather than the operator's.
const registryABI = `[
  {"type":"function","name":"addDocument","stateMutability":"nonpayable","inputs":[{"name":"docId","type":"bytes32"},{"name":"blobAddress","type":"string"},{"name":"metadata","type":"string"}],"outputs":[]},
  {"type":"function","name":"grantAccess","stateMutability":"nonpayable","inputs":[{"name":"docId","type":"bytes32"},{"name":"grantee","type":"address"}],"outputs":[]},
  {"type":"function","name":"revokeAccess","stateMutability":"nonpayable","inputs":[{"name":"docId","type":"bytes32"},{"name":"grantee","type":"address"}],"outputs":[]},
  {"type":"function","name":"removeDocument","stateMutability":"nonpayable","inputs":[{"name":"docId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"batchGrantAccess","stateMutability":"nonpayable","inputs":[{"name":"docId","type":"bytes32"},{"name":"grantees","type":"address[]"}],"outputs":[]},
  {"type":"function","name":"checkAccess","stateMutability":"view","inputs":[{"name":"docId","type":"bytes32"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getAccessList","stateMutability":"view","inputs":[{"name":"docId","type":"bytes32"}],"outputs":[{"name":"","type":"address[]"}]}
]`

// gasMargin is the percentage added on top of the node's gas estimate.
const gasMargin = 20

// EVMLedger drives the registry contract on an EVM chain over JSON-RPC.
// Derived user wallets hold no funds of their own; when a wallet cannot pay
// for its transaction the operator wallet tops it up first.
type EVMLedger struct {
	client       *ethclient.Client
	contract     common.Address
	registry     abi.ABI
	chainID      *big.Int
	deriver      *wallet.Deriver
	operatorKey  *ecdsa.PrivateKey
	operatorAddr common.Address

	// writeMu serializes transaction submission so nonces are assigned in
	// order, for derived wallets and the operator wallet alike.
	writeMu sync.Mutex
}

// NewEVMLedger dials the RPC endpoint and prepares the contract binding.
func NewEVMLedger(rpcURL, contractAddress, operatorKeyHex string, chainID int64, deriver *wallet.Deriver) (*EVMLedger, error) {
	if rpcURL == "" || contractAddress == "" || operatorKeyHex == "" {
		return nil, fmt.Errorf("ledger rpc url, contract address and operator key are required")
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	return &EVMLedger{
		client:       client,
		contract:     common.HexToAddress(contractAddress),
		registry:     parsed,
		chainID:      big.NewInt(chainID),
		deriver:      deriver,
		operatorKey:  key,
		operatorAddr: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Name identifies the backend in logs.
func (l *EVMLedger) Name() string { return "evm" }

// AddDocument registers the document on chain under a freshly derived id.
func (l *EVMLedger) AddDocument(ctx context.Context, ownerID, blobAddress string, meta DocumentMeta) (*AddResult, error) {
	owner, err := l.deriver.Derive(ownerID)
	if err != nil {
		return nil, fmt.Errorf("derive owner wallet: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	docID := DeriveDocumentID(owner.Address, blobAddress, time.Now())
	calldata, err := l.registry.Pack("addDocument", common.HexToHash(docID), blobAddress, string(metaJSON))
	if err != nil {
		return nil, fmt.Errorf("pack addDocument: %w", err)
	}
	receipt, err := l.submit(ctx, owner, calldata)
	if err != nil {
		return nil, err
	}
	return &AddResult{
		DocID:        docID,
		TxHash:       receipt.TxHash.Hex(),
		BlockNumber:  receipt.BlockNumber.Uint64(),
		OwnerAddress: owner.Address,
	}, nil
}

// GrantAccess grants the grantee's derived address read access on chain.
func (l *EVMLedger) GrantAccess(ctx context.Context, ownerID, docID, granteeID string) (*TxResult, error) {
	return l.accessTx(ctx, "grantAccess", ownerID, docID, granteeID)
}

// RevokeAccess revokes the grantee's derived address on chain.
func (l *EVMLedger) RevokeAccess(ctx context.Context, ownerID, docID, granteeID string) (*TxResult, error) {
	return l.accessTx(ctx, "revokeAccess", ownerID, docID, granteeID)
}

func (l *EVMLedger) accessTx(ctx context.Context, method, ownerID, docID, granteeID string) (*TxResult, error) {
	owner, err := l.deriver.Derive(ownerID)
	if err != nil {
		return nil, fmt.Errorf("derive owner wallet: %w", err)
	}
	granteeAddr, err := l.deriver.Address(granteeID)
	if err != nil {
		return nil, fmt.Errorf("derive grantee wallet: %w", err)
	}
	calldata, err := l.registry.Pack(method, common.HexToHash(docID), common.HexToAddress(granteeAddr))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	receipt, err := l.submit(ctx, owner, calldata)
	if err != nil {
		return nil, err
	}
	return &TxResult{
		TxHash:        receipt.TxHash.Hex(),
		BlockNumber:   receipt.BlockNumber.Uint64(),
		TargetAddress: granteeAddr,
	}, nil
}

// RemoveDocument deregisters the document on chain.
func (l *EVMLedger) RemoveDocument(ctx context.Context, ownerID, docID string) (*TxResult, error) {
	owner, err := l.deriver.Derive(ownerID)
	if err != nil {
		return nil, fmt.Errorf("derive owner wallet: %w", err)
	}
	calldata, err := l.registry.Pack("removeDocument", common.HexToHash(docID))
	if err != nil {
		return nil, fmt.Errorf("pack removeDocument: %w", err)
	}
	receipt, err := l.submit(ctx, owner, calldata)
	if err != nil {
		return nil, err
	}
	return &TxResult{
		TxHash:        receipt.TxHash.Hex(),
		BlockNumber:   receipt.BlockNumber.Uint64(),
		TargetAddress: owner.Address,
	}, nil
}

// HasAccess asks the contract whether the user's derived address may read.
func (l *EVMLedger) HasAccess(ctx context.Context, userID, docID string) (bool, error) {
	addr, err := l.deriver.Address(userID)
	if err != nil {
		return false, fmt.Errorf("derive wallet: %w", err)
	}
	calldata, err := l.registry.Pack("checkAccess", common.HexToHash(docID), common.HexToAddress(addr))
	if err != nil {
		return false, fmt.Errorf("pack checkAccess: %w", err)
	}
	out, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &l.contract, Data: calldata}, nil)
	if err != nil {
		return false, fmt.Errorf("checkAccess call: %w", err)
	}
	results, err := l.registry.Unpack("checkAccess", out)
	if err != nil {
		return false, fmt.Errorf("unpack checkAccess: %w", err)
	}
	granted, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("checkAccess returned %T, want bool", results[0])
	}
	return granted, nil
}

// GetAccessors returns the granted addresses recorded on chain.
func (l *EVMLedger) GetAccessors(ctx context.Context, ownerID, docID string) ([]string, error) {
	calldata, err := l.registry.Pack("getAccessList", common.HexToHash(docID))
	if err != nil {
		return nil, fmt.Errorf("pack getAccessList: %w", err)
	}
	out, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &l.contract, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("getAccessList call: %w", err)
	}
	results, err := l.registry.Unpack("getAccessList", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getAccessList: %w", err)
	}
	addrs, ok := results[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("getAccessList returned %T, want []common.Address", results[0])
	}
	hexAddrs := make([]string, len(addrs))
	for i, a := range addrs {
		hexAddrs[i] = a.Hex()
	}
	return hexAddrs, nil
}

// BatchGrantAccess grants every grantee in a single transaction.
func (l *EVMLedger) BatchGrantAccess(ctx context.Context, ownerID, docID string, granteeIDs []string) (*BatchResult, error) {
	owner, err := l.deriver.Derive(ownerID)
	if err != nil {
		return nil, fmt.Errorf("derive owner wallet: %w", err)
	}
	addrs := make([]common.Address, len(granteeIDs))
	hexAddrs := make([]string, len(granteeIDs))
	for i, id := range granteeIDs {
		hexAddr, err := l.deriver.Address(id)
		if err != nil {
			return nil, fmt.Errorf("derive grantee wallet: %w", err)
		}
		addrs[i] = common.HexToAddress(hexAddr)
		hexAddrs[i] = hexAddr
	}
	calldata, err := l.registry.Pack("batchGrantAccess", common.HexToHash(docID), addrs)
	if err != nil {
		return nil, fmt.Errorf("pack batchGrantAccess: %w", err)
	}
	receipt, err := l.submit(ctx, owner, calldata)
	if err != nil {
		return nil, err
	}
	return &BatchResult{
		TxHash:          receipt.TxHash.Hex(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
		TargetAddresses: hexAddrs,
	}, nil
}

// submit signs calldata with the sender's wallet and waits for the receipt,
// topping the wallet up from the operator beforehand when it cannot cover the
// estimated cost.
func (l *EVMLedger) submit(ctx context.Context, sender *wallet.Wallet, calldata []byte) (*types.Receipt, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	from := common.HexToAddress(sender.Address)
	gas, err := l.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &l.contract, Data: calldata})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasMargin / 100

	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	if err := l.fundIfNeeded(ctx, from, cost, gasPrice); err != nil {
		return nil, err
	}

	nonce, err := l.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &l.contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), sender.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := l.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, l.client, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for transaction %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", receipt.TxHash.Hex())
	}
	return receipt, nil
}

// fundIfNeeded transfers the full estimated cost from the operator wallet
// when the sender's balance cannot cover it. Funding the full cost rather
// than the shortfall leaves headroom for gas price movement before the main
// transaction lands.
func (l *EVMLedger) fundIfNeeded(ctx context.Context, sender common.Address, cost, gasPrice *big.Int) error {
	balance, err := l.client.BalanceAt(ctx, sender, nil)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	if balance.Cmp(cost) >= 0 {
		return nil
	}

	logger.Infof("funding wallet %s from operator: balance=%s cost=%s", sender.Hex(), balance, cost)
	nonce, err := l.client.PendingNonceAt(ctx, l.operatorAddr)
	if err != nil {
		return fmt.Errorf("fetch operator nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &sender,
		Value:    cost,
		Gas:      21000,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), l.operatorKey)
	if err != nil {
		return fmt.Errorf("sign funding transaction: %w", err)
	}
	if err := l.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send funding transaction: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, l.client, signed)
	if err != nil {
		return fmt.Errorf("wait for funding transaction %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("funding transaction %s reverted", receipt.TxHash.Hex())
	}
	return nil
}
