package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"
)

var (
	ErrAuthorizationDeclined = errors.New("authorization declined")
	ErrNoAccountsAvailable   = errors.New("no accounts available")
)

// Authorizer decides which keystore account a connecting dapp may use and
// provides the passphrase to unlock it.
type Authorizer interface {
	Authorize(ctx context.Context, candidates []accounts.Account) (accounts.Account, string, error)
}

// PassphraseAuthorizer resolves the keystore passphrase from an environment
// variable or by prompting the operator. An empty answer at the prompt
// declines the request.
type PassphraseAuthorizer struct {
	envVar      string
	preferred   string
	interactive bool
	input       *os.File
	output      io.Writer
}

// NewPassphraseAuthorizer creates an authorizer. preferred selects the account
// by address, otherwise the first keystore account is used. Prompting only
// happens when interactive is set and stdin is a terminal.
func NewPassphraseAuthorizer(envVar string, preferred string, interactive bool) *PassphraseAuthorizer {
	return &PassphraseAuthorizer{
		envVar:      strings.TrimSpace(envVar),
		preferred:   strings.TrimSpace(preferred),
		interactive: interactive,
		input:       os.Stdin,
		output:      os.Stderr,
	}
}

func (a *PassphraseAuthorizer) Authorize(ctx context.Context, candidates []accounts.Account) (accounts.Account, string, error) {
	account, err := a.selectAccount(candidates)
	if err != nil {
		return accounts.Account{}, "", err
	}

	if a.envVar != "" {
		if value, ok := os.LookupEnv(a.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return accounts.Account{}, "", fmt.Errorf("%s is set but empty", a.envVar)
			}
			return account, value, nil
		}
	}

	if !a.interactive || !term.IsTerminal(int(a.input.Fd())) {
		return accounts.Account{}, "", ErrAuthorizationDeclined
	}

	fmt.Fprintf(a.output, "Connect account %v? Enter keystore passphrase (empty to reject): ", account.Address.Hex())
	bytes, err := term.ReadPassword(int(a.input.Fd()))
	fmt.Fprintln(a.output)
	if err != nil {
		return accounts.Account{}, "", fmt.Errorf("failed to read passphrase: %w", err)
	}

	passphrase := string(bytes)
	if strings.TrimSpace(passphrase) == "" {
		return accounts.Account{}, "", ErrAuthorizationDeclined
	}

	return account, passphrase, nil
}

func (a *PassphraseAuthorizer) selectAccount(candidates []accounts.Account) (accounts.Account, error) {
	if len(candidates) == 0 {
		return accounts.Account{}, ErrNoAccountsAvailable
	}
	if a.preferred == "" {
		return candidates[0], nil
	}
	if !common.IsHexAddress(a.preferred) {
		return accounts.Account{}, fmt.Errorf("invalid account address: %v", a.preferred)
	}
	preferred := common.HexToAddress(a.preferred)
	for _, candidate := range candidates {
		if candidate.Address == preferred {
			return candidate, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("account %v not found in keystore", preferred.Hex())
}
