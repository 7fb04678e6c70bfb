package rewarder

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// fakeCaller records the last call and answers with a canned word.
type fakeCaller struct {
	lastTo   *common.Address
	lastData []byte
	answer   []byte
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.lastTo = msg.To
	f.lastData = msg.Data
	return f.answer, nil
}

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestCallData_selectors(t *testing.T) {
	require := require.New(t)

	require.Equal(selector("triggerAction()"), TriggerCallData())
	require.Equal(selector("claimRewards()"), ClaimCallData())
	require.Len(TriggerCallData(), 4, "no-arg call is selector only")
}

func TestRewardsOf_packsAndUnpacks(t *testing.T) {
	require := require.New(t)

	contract := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	wallet := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	f := &fakeCaller{answer: common.LeftPadBytes(big.NewInt(12345).Bytes(), 32)}
	r := New(contract, f)

	got, err := r.RewardsOf(context.Background(), wallet)
	require.NoError(err)
	require.Equal(big.NewInt(12345), got)

	require.Equal(contract, *f.lastTo)
	require.True(bytes.HasPrefix(f.lastData, selector("rewardsOf(address)")))
	require.Equal(common.LeftPadBytes(wallet.Bytes(), 32), f.lastData[4:])
}

func TestRewardsAvailable(t *testing.T) {
	require := require.New(t)

	f := &fakeCaller{answer: common.LeftPadBytes(big.NewInt(7).Bytes(), 32)}
	r := New(common.Address{}, f)

	got, err := r.RewardsAvailable(context.Background())
	require.NoError(err)
	require.Equal(big.NewInt(7), got)
	require.Equal(selector("rewardsAvailable()"), f.lastData)
}
