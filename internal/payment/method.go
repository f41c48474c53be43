package payment

import (
	"fmt"
	"strings"

	"bookstore-core/internal/apperr"
)

type Method string

const (
	MethodCOD        Method = "COD"
	MethodCard       Method = "CARD"
	MethodUPI        Method = "UPI"
	MethodNetBanking Method = "NETBANKING"
	MethodWallet     Method = "WALLET"
)

var ErrUnknownMethod = fmt.Errorf("%w: unknown payment method", apperr.ErrInvalidInput)

var methods = map[Method]struct{}{
	MethodCOD:        {},
	MethodCard:       {},
	MethodUPI:        {},
	MethodNetBanking: {},
	MethodWallet:     {},
}

// ParseMethod normalises s and checks it against the supported methods.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := methods[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
	return m, nil
}

// IsCashOnDelivery reports whether payment is collected at delivery.
func (m Method) IsCashOnDelivery() bool {
	return m == MethodCOD
}
