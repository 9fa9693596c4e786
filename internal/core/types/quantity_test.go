package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityPredicates(t *testing.T) {
	assert.True(t, NewQuantity(0).IsZero())
	assert.True(t, NewQuantity(3).IsPositive())
	assert.True(t, NewQuantity(-3).IsNegative())
	assert.False(t, NewQuantity(0).IsPositive())
	assert.False(t, NewQuantity(0).IsNegative())
}

func TestQuantityArithmetic(t *testing.T) {
	a := NewQuantity(10)
	b := NewQuantity(4)

	assert.Equal(t, int64(14), a.Add(b).Int64())
	assert.Equal(t, int64(6), a.Sub(b).Int64())
	assert.Equal(t, int64(-10), a.Neg().Int64())
	assert.Equal(t, int64(10), a.Neg().Abs().Int64())
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "42", want: 42},
		{in: "-7", want: -7},
		{in: "9223372036854775807", want: 9223372036854775807},
		{in: "9223372036854775808", wantErr: true},
		{in: "3.5", wantErr: true},
		{in: "ten", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q, err := ParseQuantity(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Int64())
		})
	}
}
