package money_test

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-refunds/internal/money"
)

func TestParseToMinorUnits(t *testing.T) {
	cases := []struct {
		in    string
		cents string
	}{
		{"123.45", "12345"},
		{"0.00", "0"},
		{"5", "500"},
		{"5.1", "510"},
		{"1.239", "123"},
		{"1.999", "199"},
		{".5", "50"},
		{"-1.50", "-150"},
		{"-0.05", "-5"},
		{"1000000000.00", "100000000000"},
		{"99999999999999999999.99", "9999999999999999999999"},
	}
	for _, tc := range cases {
		a, err := money.Parse(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.cents, a.MinorUnits().String(), tc.in)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", " ", "abc", "1.2.3", "1,50", "-", ".", "1e5", "12a.00"} {
		_, err := money.Parse(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, money.ErrInvalidAmount), in)
	}
}

func TestFormatFromMinorUnits(t *testing.T) {
	require.Equal(t, "0.00", money.FromMinorUnits(0).String())
	require.Equal(t, "0.05", money.FromMinorUnits(5).String())
	require.Equal(t, "1.50", money.FromMinorUnits(150).String())
	require.Equal(t, "-1.50", money.FromMinorUnits(-150).String())
	require.Equal(t, "0.00", money.Amount{}.String())
}

func TestTruncationIsDocumentedNotRounded(t *testing.T) {
	c, err := money.Canonical("10.129")
	require.NoError(t, err)
	require.Equal(t, "10.12", c)
}

func TestLargeMagnitudeArithmetic(t *testing.T) {
	net := money.MustParse("1000000000.00")
	vat := money.MustParse("250000000.00")
	gross := money.MustParse("1250000000.00")
	require.True(t, net.Add(vat).Equal(gross))

	many := net.MulInt(1_000_000_000)
	require.Equal(t, "1000000000000000000.00", many.String())
	require.Equal(t, "0.00", many.Sub(many).String())
}

func TestSum(t *testing.T) {
	require.True(t, money.Sum().IsZero())
	total := money.Sum(money.MustParse("0.10"), money.MustParse("0.20"), money.MustParse("0.70"))
	require.Equal(t, "1.00", total.String())
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical strings survive parse and format", prop.ForAll(
		func(whole uint64, frac uint8) bool {
			s := fmt.Sprintf("%d.%02d", whole, int(frac)%100)
			got, err := money.Canonical(s)
			return err == nil && got == s
		},
		gen.UInt64(),
		gen.UInt8(),
	))

	properties.Property("minor units survive format and parse", prop.ForAll(
		func(cents int64) bool {
			a := money.FromMinorUnits(cents)
			back, err := money.Parse(a.String())
			return err == nil && back.MinorUnits().Cmp(big.NewInt(cents)) == 0
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
