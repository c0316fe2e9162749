package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var countPrinter = message.NewPrinter(language.English)

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatAddress shortens an address to 0x1234...abcd
func FormatAddress(address common.Address) string {
	if address == (common.Address{}) {
		return "---"
	}
	hex := address.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// FormatNative formats a wei amount with three decimals, tiny non-zero amounts are shown as "< 0.001".
func FormatNative(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0.00"
	}
	value, _ := WeiToNative(wei).Float64()
	if value < 0.001 {
		return "< 0.001"
	}
	return fmt.Sprintf("%.3f", value)
}

// FormatNativeRounded formats a wei amount as whole native units.
func FormatNativeRounded(wei *big.Int, symbol string) string {
	if wei == nil {
		return "0 " + symbol
	}
	value, _ := WeiToNative(wei).Float64()
	return fmt.Sprintf("%.0f %v", value, symbol)
}

// FormatNativeExact formats a wei amount with full precision, trimming trailing zeros.
func FormatNativeExact(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	quo, rem := new(big.Int).QuoRem(new(big.Int).Abs(wei), weiPerUnit, new(big.Int))
	res := quo.String()
	if rem.Sign() != 0 {
		frac := fmt.Sprintf("%018s", rem.String())
		res += "." + strings.TrimRight(frac, "0")
	}
	if wei.Sign() < 0 {
		res = "-" + res
	}
	return res
}

// FormatCount formats a counter with thousands separators, "---" when unknown.
func FormatCount(value *big.Int) string {
	if value == nil {
		return "---"
	}
	if !value.IsInt64() {
		return value.String()
	}
	return countPrinter.Sprintf("%d", value.Int64())
}

func WeiToNative(wei *big.Int) *big.Float {
	return new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt(weiPerUnit))
}

// NativeToWei converts whole native units to wei.
func NativeToWei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), weiPerUnit)
}

// ParseNative parses a decimal amount in native units (e.g. "1.5") into wei.
func ParseNative(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("negative amount: %v", amount)
	}
	amount = strings.TrimPrefix(amount, "+")

	whole, frac, hasFrac := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac {
		if len(frac) > 18 {
			return nil, fmt.Errorf("too many decimals: %v", amount)
		}
		frac += strings.Repeat("0", 18-len(frac))
	} else {
		frac = strings.Repeat("0", 18)
	}
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid amount: %v", amount)
		}
	}

	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %v", amount)
	}
	return wei, nil
}
