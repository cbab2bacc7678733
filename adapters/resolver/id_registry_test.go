package resolver

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwf/core"
)

type callerFunc func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

func (f callerFunc) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f(ctx, call, blockNumber)
}

func custodyCaller(t *testing.T, owners map[uint64]common.Address) callerFunc {
	t.Helper()
	registry, err := NewIDRegistry(nil, "", time.Second)
	require.NoError(t, err)
	method := registry.abi.Methods["custodyOf"]

	return func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
		require.NotNil(t, call.To)
		assert.Equal(t, common.HexToAddress(DefaultIDRegistry), *call.To)
		assert.Equal(t, method.ID, call.Data[:4])

		args, err := method.Inputs.Unpack(call.Data[4:])
		require.NoError(t, err)
		fid := args[0].(*big.Int).Uint64()
		return method.Outputs.Pack(owners[fid])
	}
}

func TestIDRegistry_CustodyOf(t *testing.T) {
	owner := common.HexToAddress(primary)
	registry, err := NewIDRegistry(custodyCaller(t, map[uint64]common.Address{3: owner}), "", time.Second)
	require.NoError(t, err)

	custody, err := registry.CustodyOf(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, owner.Hex(), custody)

	_, err = registry.CustodyOf(context.Background(), 4)
	assert.ErrorIs(t, err, core.ErrUnknownIdentity)
}

func TestIDRegistry_CallFailure(t *testing.T) {
	registry, err := NewIDRegistry(callerFunc(func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
		return nil, errors.New("rpc unavailable")
	}), "", time.Second)
	require.NoError(t, err)

	_, err = registry.CustodyOf(context.Background(), 3)
	assert.ErrorIs(t, err, core.ErrResolverFailure)

	_, err = NewIDRegistry(nil, "not-an-address", time.Second)
	assert.Error(t, err)
}

func TestStaticCustody(t *testing.T) {
	custody := StaticCustody{3: primary}

	got, err := custody.CustodyOf(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(primary).Hex(), got)

	_, err = custody.CustodyOf(context.Background(), 9)
	assert.ErrorIs(t, err, core.ErrUnknownIdentity)
}
