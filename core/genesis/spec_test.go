package genesis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"questchain/core"
	"questchain/crypto"
	"questchain/native/quest"
	"questchain/storage"
)

const sampleGenesis = `
genesis_time: "2024-05-01T00:00:00Z"
initializer: founder
owner: treasury
quest_creation_fee: "5"
initial_balance: "1000"
`

func TestLoadGenesisSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, "founder", spec.Initializer)
	require.Equal(t, int64(1714521600), spec.GenesisTimestamp().Unix())

	msg := spec.InstantiateMsg()
	require.NotNil(t, msg.Owner)
	require.Equal(t, "treasury", *msg.Owner)
	require.Equal(t, "5", msg.QuestCreationFee)
}

func TestParseGenesisSpecRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":  sampleGenesis + "extra: 1\n",
		"missing time":   "initializer: a\nquest_creation_fee: \"1\"\ninitial_balance: \"1\"\n",
		"bad fee":        "genesis_time: \"2024-05-01T00:00:00Z\"\ninitializer: a\nquest_creation_fee: \"-1\"\ninitial_balance: \"1\"\n",
		"no initializer": "genesis_time: \"2024-05-01T00:00:00Z\"\nquest_creation_fee: \"1\"\ninitial_balance: \"1\"\n",
		"blank owner":    "genesis_time: \"2024-05-01T00:00:00Z\"\ninitializer: a\nowner: \" \"\nquest_creation_fee: \"1\"\ninitial_balance: \"1\"\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenesisSpec([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleGenesis))
	require.NoError(t, err)

	ledger, err := core.NewLedger(storage.NewMemDB(), false)
	require.NoError(t, err)
	ledger.SetValidator(crypto.PlainValidator{})

	res, err := Apply(context.Background(), ledger, spec)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, uint64(1), res.Height)
	require.Equal(t, uint64(1714521600), res.Time)

	again, err := Apply(context.Background(), ledger, spec)
	require.NoError(t, err)
	require.Nil(t, again)

	out, err := ledger.Query(context.Background(), core.QueryMsg{GetConfig: &core.Empty{}})
	require.NoError(t, err)
	cfg := out.(*quest.ConfigResponse)
	require.Equal(t, "treasury", cfg.Owner)

	out, err = ledger.Query(context.Background(), core.QueryMsg{GetBalance: &core.AddressQuery{Address: "founder"}})
	require.NoError(t, err)
	require.Equal(t, "1000", out.(*quest.BalanceResponse).Balance)
}
