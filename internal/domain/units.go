package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// FormatEther renders a wei amount in whole native units, trimming trailing
// zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	value := new(big.Rat).SetFrac(wei, big.NewInt(params.Ether))
	text := value.FloatString(18)
	if strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimSuffix(text, ".")
	}
	return text
}
