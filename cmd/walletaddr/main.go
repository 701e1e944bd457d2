// Command walletaddr prints the ledger address derived for one or more
// application user IDs. Operators use it to pre-fund wallets and to match
// on-chain accessor lists back to users.
package main

import (
	"fmt"
	"os"

	"github.com/docuchain/docuchain-backend/internal/wallet"
)

func main() {
	secret := os.Getenv("WALLET_MASTER_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "WALLET_MASTER_SECRET is required")
		os.Exit(1)
	}
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <user-id> [<user-id> ...]\n", os.Args[0])
		os.Exit(2)
	}

	deriver, err := wallet.NewDeriver(secret, len(os.Args), 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, uid := range os.Args[1:] {
		addr, err := deriver.Address(uid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", uid, err)
			os.Exit(1)
		}
		fmt.Printf("%s %s\n", uid, addr)
	}
}
