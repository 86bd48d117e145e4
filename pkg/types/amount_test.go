package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrencyEqual(t *testing.T) {
	require.True(t, NativeCurrency.Equal(NativeCurrency))
	require.False(t, NativeCurrency.Equal(CreditCurrency))
	require.True(t, CustomCurrency("USD").Equal(CustomCurrency("USD")))
	require.False(t, CustomCurrency("USD").Equal(CustomCurrency("EUR")))
}

func TestAmountIsZero(t *testing.T) {
	require.True(t, Zero().IsZero())
	require.False(t, Amount{Value: 1, Currency: NativeCurrency}.IsZero())
}
