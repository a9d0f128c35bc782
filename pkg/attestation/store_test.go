package attestation

import (
	"testing"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDFromString(t *testing.T) {
	id, err := MessageIDFromString("1/0000000000000000000000000000000000000000000000000000000000000004/1")
	require.NoError(t, err)

	expectAddr := vaa.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4}
	assert.Equal(t, chains.Solana, id.EmitterChain)
	assert.Equal(t, expectAddr, id.EmitterAddress)
	assert.Equal(t, uint64(1), id.Sequence)
	assert.Equal(t, "signed/1/0000000000000000000000000000000000000000000000000000000000000004/1", string(id.Bytes()))

	id, err = MessageIDFromString("ethereum/0000000000000000000000003ee18b2214aff97000d974cf647e7c347e8fa585/77")
	require.NoError(t, err)
	assert.Equal(t, chains.Ethereum, id.EmitterChain)
	assert.Equal(t, uint64(77), id.Sequence)

	for _, bad := range []string{"", "1/2", "x/04/1", "1/zz/1", "1/04/x", "70000/04/1"} {
		_, err := MessageIDFromString(bad)
		assert.Error(t, err, bad)
	}
}

func TestStorePutGet(t *testing.T) {
	store, err := OpenInMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	v, raw := signedVAA(t, 1)
	id := MessageIDFromVAA(v)

	_, err = store.Get(id)
	assert.ErrorIs(t, err, ErrVAANotFound)

	require.NoError(t, store.Put(v, raw))
	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	unsigned := *v
	unsigned.Signatures = nil
	assert.Error(t, store.Put(&unsigned, raw))
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	v, raw := signedVAA(t, 2)

	store, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(v, raw))
	require.NoError(t, store.Close())

	store, err = OpenStore(dir)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(MessageIDFromVAA(v))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
