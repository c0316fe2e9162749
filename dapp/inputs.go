package dapp

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/spsmatrix/dapp/utils"
)

// InputValues are the raw form fields as typed by the user.
type InputValues struct {
	UplineID         string `json:"upline_id"`
	Position         string `json:"position"`
	ContributeAmount string `json:"contribute_amount"`
}

type inputFields struct {
	mutex  sync.Mutex
	values InputValues
}

func (f *inputFields) get() InputValues {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.values
}

func (f *inputFields) set(values InputValues) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.values = values
}

func (f *inputFields) update(fn func(values *InputValues)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	fn(&f.values)
}

func (f *inputFields) clearUpline() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.values.UplineID = ""
}

func (f *inputFields) clearContribution() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.values.ContributeAmount = ""
}

// parseUplineID accepts a non-negative decimal id. Empty means not supplied.
func parseUplineID(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("please enter the upline id")
	}
	uplineID, ok := new(big.Int).SetString(value, 10)
	if !ok || uplineID.Sign() < 0 {
		return nil, fmt.Errorf("invalid upline id: %v", value)
	}
	return uplineID, nil
}

// parsePosition maps the position selector. Anything but "true" (or "right")
// selects the left leg.
func parsePosition(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "right" {
		return true
	}
	position, err := strconv.ParseBool(value)
	return err == nil && position
}

func parseContribution(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("please enter a valid amount")
	}
	amount, err := utils.ParseNative(value)
	if err != nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("please enter a valid amount")
	}
	return amount, nil
}
