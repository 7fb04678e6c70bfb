package networks

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-epoch-trigger/chaintime"
)

func TestRulesByName(t *testing.T) {
	require := require.New(t)

	for _, name := range []string{"main", "test", "fake"} {
		r, ok := RulesByName(name)
		require.True(ok, name)
		require.Equal(name, r.Name)
		require.NotEqual(uint64(0), r.NetworkID)
	}

	_, ok := RulesByName("nope")
	require.False(ok)
}

func TestPresetGeometry(t *testing.T) {
	require := require.New(t)

	main := MainNetRules()
	require.Equal(chaintime.ModelGenesis, main.Epochs.Model)
	require.Equal(4*time.Hour, main.Epochs.Duration)
	require.False(main.Epochs.Genesis.IsZero())

	fake := FakeNetRules()
	require.Equal(chaintime.ModelBlockCount, fake.Epochs.Model)
	require.Equal(uint64(200), fake.Epochs.BlocksPerEpoch)
	require.Equal(3*time.Second, fake.Epochs.SecondsPerBlock)
}

func TestRulesCopyIsDeep(t *testing.T) {
	r := MainNetRules()
	cp := r.Copy()

	cp.Economy.MinTipWei.Add(cp.Economy.MinTipWei, big.NewInt(1))
	cp.Economy.DefaultClaimCeilingWei.SetInt64(1)
	cp.Economy.DefaultBalanceFloorWei.SetInt64(1)

	want := MainNetRules()
	if r.Economy.MinTipWei.Cmp(want.Economy.MinTipWei) != 0 {
		t.Errorf("MinTipWei mutated through copy: %s", r.Economy.MinTipWei)
	}
	if r.Economy.DefaultClaimCeilingWei.Cmp(want.Economy.DefaultClaimCeilingWei) != 0 {
		t.Errorf("DefaultClaimCeilingWei mutated through copy")
	}
	if r.Economy.DefaultBalanceFloorWei.Cmp(want.Economy.DefaultBalanceFloorWei) != 0 {
		t.Errorf("DefaultBalanceFloorWei mutated through copy")
	}
}

func TestRulesString(t *testing.T) {
	s := MainNetRules().String()
	require.Contains(t, s, `"Name":"main"`)
	require.Contains(t, s, `"NetworkID":250`)
}
