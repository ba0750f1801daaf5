package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossFor(t *testing.T) {
	price := MustMoney("5.00")

	assert.True(t, LossFor(price, 5).Equal(MustMoney("25.00")))
	assert.True(t, LossFor(price, 0).IsZero())
	assert.True(t, LossFor(price, -2).Equal(MustMoney("-10.00")))
}

func TestLossFor_NoDriftOnRepeatedAccumulation(t *testing.T) {
	price := MustMoney("0.10")
	total := Zero()
	for i := 0; i < 1000; i++ {
		total = total.Add(LossFor(price, 3))
	}
	assert.Equal(t, "300", total.String())
}

func TestNewMoneyFromString(t *testing.T) {
	m, err := NewMoneyFromString("12.345")
	require.NoError(t, err)
	assert.Equal(t, "12.35", Normalize(m).StringFixed(2))

	_, err = NewMoneyFromString("abc")
	assert.Error(t, err)
}
