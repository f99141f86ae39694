package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteBulkOverflowInsufficientSpace(t *testing.T) {
	dp := NewLocalDataport(16)
	before := append([]byte(nil), dp.Pointer()...)

	err := WriteBulk(dp, make([]byte, 17))
	require.Equal(t, ErrInsufficientSpace, err)
	require.Equal(t, before, dp.Pointer(), "rejected write must not mutate the dataport buffer")
}

func TestWriteBulkExactFitSucceeds(t *testing.T) {
	dp := NewLocalDataport(16)
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, WriteBulk(dp, data))
	require.Equal(t, data, dp.Pointer())
}

func TestReadBulkCapacityTooSmall(t *testing.T) {
	dp := NewLocalDataport(16)
	copy(dp.Pointer(), []byte("0123456789"))
	_, err := ReadBulk(dp, 10, 4)
	require.Equal(t, ErrBufferTooSmall, err)
}

func TestReadBulkInvalidatedDataport(t *testing.T) {
	dp := NewLocalDataport(16)
	dp.Invalidate()
	_, err := ReadBulk(dp, 0, 16)
	require.Equal(t, ErrInvalidHandle, err)

	err = WriteBulk(dp, []byte("x"))
	require.Equal(t, ErrInvalidHandle, err)
}
