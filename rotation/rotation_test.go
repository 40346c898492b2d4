package rotation

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/denysvitali/haystack-go/keys"
)

func fixtureMaster(t *testing.T) Master {
	t.Helper()
	var raw [keys.PrivateKeySize]byte
	raw[len(raw)-1] = 1
	priv, err := keys.ParsePrivateKey(raw[:])
	require.NoError(t, err)

	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	m, err := NewMasterWithSeed(priv, seed)
	require.NoError(t, err)
	return m
}

func TestDeriveKnownAnswer(t *testing.T) {
	m := fixtureMaster(t)
	expected := []struct {
		priv string
		adv  string
	}{
		{"69fc6a59d0b76be97816dead40805a8cd5eb5200eb364f79f75b98d0", "ad9a1b2a4b8c7e0748c0423a1221ab06d028c8e5aeaa72b67d73a088"},
		{"1af2fe0757a26abfe01173775b63494258bea305854470a2149c5737", "335f9aaa896b3a0ca867fffb91cb62652f232559c8141f1382d9912a"},
		{"8db8e78798d16669ed0e281f00cc2931fd185662a919e262881995bd", "675f96c4e5a6b5bfc2988d03e1550af05453412c64d73fd37ee3d4ff"},
		{"8cec3b212040d2ddbb1aed1e9af29af4d218ccc213a4212090dcd908", "3c04899dd897bcdf2c72a91a2c07ec353f80c7759a2d9dfcc4ddf9b3"},
	}
	for i, e := range expected {
		kp := Derive(m, Interval(i))
		require.Equal(t, Interval(i), kp.Interval)
		require.Equal(t, e.priv, hex.EncodeToString(kp.Private.Bytes()), "interval %d", i)
		adv := kp.Public.AdvertisedKey()
		require.Equal(t, e.adv, hex.EncodeToString(adv[:]), "interval %d", i)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	priv, err := keys.GeneratePrivateKey(nil)
	require.NoError(t, err)
	m, err := NewMaster(priv)
	require.NoError(t, err)

	for _, i := range []Interval{0, 1, 17, 96} {
		a := Derive(m, i)
		b := Derive(m, i)
		require.Equal(t, a.Private, b.Private)
		require.True(t, a.Public.Equal(b.Public))
	}

	again, err := NewMaster(priv)
	require.NoError(t, err)
	require.Equal(t, m, again)
}

func TestDistinctIntervalsDistinctKeys(t *testing.T) {
	priv, err := keys.GeneratePrivateKey(nil)
	require.NoError(t, err)
	m, err := NewMaster(priv)
	require.NoError(t, err)

	seen := map[string]Interval{}
	for _, kp := range Range(m, 0, 200) {
		adv := kp.Public.AdvertisedKey()
		id := hex.EncodeToString(adv[:])
		prev, dup := seen[id]
		require.False(t, dup, "interval %d collides with %d", kp.Interval, prev)
		seen[id] = kp.Interval
	}
}

func TestRangeMatchesDerive(t *testing.T) {
	m := fixtureMaster(t)
	pairs := Range(m, 10, 5)
	require.Len(t, pairs, 5)
	for j, kp := range pairs {
		single := Derive(m, Interval(10+j))
		require.Equal(t, single.Interval, kp.Interval)
		require.Equal(t, single.Private, kp.Private)
	}
	require.Nil(t, Range(m, 0, 0))
}

func TestWalker(t *testing.T) {
	m := fixtureMaster(t)
	w := NewWalker(m, 3)
	require.Equal(t, Interval(3), w.Interval())
	kp := w.Next()
	require.Equal(t, Derive(m, 3).Private, kp.Private)
	require.Equal(t, Interval(4), w.Interval())
	require.Equal(t, Derive(m, 4).Private, w.Next().Private)
}

func TestNewMasterWithSeedValidation(t *testing.T) {
	priv, err := keys.GeneratePrivateKey(nil)
	require.NoError(t, err)
	_, err = NewMasterWithSeed(priv, make([]byte, 16))
	require.Error(t, err)

	_, err = NewMasterWithSeed(keys.PrivateKey{}, make([]byte, SeedSize))
	require.ErrorIs(t, err, keys.ErrInvalidScalar)

	_, err = NewMaster(keys.PrivateKey{})
	require.ErrorIs(t, err, keys.ErrInvalidScalar)
}

func TestNewMasterSeedDerivation(t *testing.T) {
	var raw [keys.PrivateKeySize]byte
	raw[len(raw)-1] = 1
	priv, err := keys.ParsePrivateKey(raw[:])
	require.NoError(t, err)
	m, err := NewMaster(priv)
	require.NoError(t, err)
	require.Equal(t, "f74b8acc447e43b47de83aae2ba5a613c82fc31d6fa85e2464470419c73664b8", hex.EncodeToString(m.Seed[:]))
}

func TestSchedule(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Schedule{Epoch: epoch, Period: PrimaryPeriod}

	require.Equal(t, Interval(0), s.IntervalAt(epoch.Add(-time.Hour)))
	require.Equal(t, Interval(0), s.IntervalAt(epoch))
	require.Equal(t, Interval(0), s.IntervalAt(epoch.Add(14*time.Minute)))
	require.Equal(t, Interval(1), s.IntervalAt(epoch.Add(15*time.Minute)))
	require.Equal(t, Interval(96), s.IntervalAt(epoch.Add(24*time.Hour)))
	require.Equal(t, epoch.Add(30*time.Minute), s.Start(2))

	first, count := s.Window(epoch.Add(20*time.Minute), epoch.Add(61*time.Minute))
	require.Equal(t, Interval(1), first)
	require.Equal(t, 4, count)

	first, count = s.Window(epoch.Add(time.Hour), epoch)
	require.Equal(t, Interval(4), first)
	require.Equal(t, 1, count)

	daily := Schedule{Epoch: epoch, Period: SecondaryPeriod}
	first, count = daily.Window(epoch.Add(-48*time.Hour), epoch.Add(36*time.Hour))
	require.Equal(t, Interval(0), first)
	require.Equal(t, 2, count)
}
