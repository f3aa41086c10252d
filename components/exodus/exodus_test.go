package exodus_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wc "github.com/avoigt/worldcore"
	"github.com/avoigt/worldcore/components/base"
	"github.com/avoigt/worldcore/components/exodus"
)

func compose(t *testing.T) *wc.Model {
	t.Helper()
	m, _, err := wc.Compose(base.Component(), exodus.Component())
	require.NoError(t, err)
	return m
}

func findEvent(t *testing.T, m *wc.Model, name string) *wc.Event {
	t.Helper()
	for _, ev := range m.Events() {
		if ev.ProcessName() == name {
			return ev
		}
	}
	t.Fatalf("no event named %q", name)
	return nil
}

func findStep(t *testing.T, m *wc.Model, name string) *wc.Step {
	t.Helper()
	for _, st := range m.Steps() {
		if st.ProcessName() == name {
			return st
		}
	}
	t.Fatalf("no step named %q", name)
	return nil
}

func TestAssets_ApproachEquilibrium(t *testing.T) {
	m := compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)
	farmer := u.NewIndividual(c)
	townsman := u.NewIndividual(c)

	require.NoError(t, exodus.Profession.Set(townsman, exodus.Townsman))

	// dl/dt = income - 0.5 l settles at twice the income
	r, err := wc.NewRunner(m, u, wc.Config{T0: 0, T1: 40, Dt: 0.25, RecordEvery: 10})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, exodus.Liquidity.Float(farmer), 1e-6)
	assert.InDelta(t, 2.4, exodus.Liquidity.Float(townsman), 1e-6)

	assert.InDelta(t, math.Sqrt(2.0), exodus.Utility.Float(farmer), 1e-6)
	assert.InDelta(t, math.Sqrt(2.4), exodus.Utility.Float(townsman), 1e-6)
}

func TestNetworkAnalysis(t *testing.T) {
	m := compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)
	inds := make([]*wc.Individual, 4)
	for i := range inds {
		inds[i] = u.NewIndividual(c)
	}

	net := u.Culture().AcquaintanceNetwork()
	net.Link(inds[0], inds[1])
	net.Link(inds[1], inds[2])
	net.Link(inds[2], inds[0])

	require.NoError(t, exodus.Profession.Set(inds[3], exodus.Townsman))

	r, err := wc.NewRunner(m, u, wc.Config{T0: 0, T1: 1.5, Dt: 0.25})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	// analysed at t = 1: farmer triangle plus an isolated townsman
	assert.InDelta(t, 0.75, exodus.NetworkClustering.Float(u.Culture()), 1e-12)

	split, ok := exodus.Split.Get(u.Culture())
	require.True(t, ok)
	assert.Equal(t, true, split)
}

func TestNetworkAnalysis_CrossLinkPreventsSplit(t *testing.T) {
	m := compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)
	farmer := u.NewIndividual(c)
	townsman := u.NewIndividual(c)

	require.NoError(t, exodus.Profession.Set(farmer, exodus.Farmer))
	require.NoError(t, exodus.Profession.Set(townsman, exodus.Townsman))
	u.Culture().AcquaintanceNetwork().Link(farmer, townsman)

	analyse := findStep(t, m, "analyse acquaintance network")
	analyse.Do(1, u.Culture())

	split, ok := exodus.Split.Get(u.Culture())
	require.True(t, ok)
	assert.Equal(t, false, split)
}

func TestReconsiderProfession(t *testing.T) {
	prepare := func(t *testing.T) (*wc.Model, *wc.Universe, *wc.Individual, *wc.Individual) {
		t.Helper()
		m := compose(t)

		u := wc.NewUniverse()
		w := u.NewWorld()
		c := u.NewCell(w, nil)
		farmer := u.NewIndividual(c)
		townsman := u.NewIndividual(c)

		require.NoError(t, exodus.Profession.Set(farmer, exodus.Farmer))
		require.NoError(t, exodus.Profession.Set(townsman, exodus.Townsman))
		u.Culture().AcquaintanceNetwork().Link(farmer, townsman)
		return m, u, farmer, townsman
	}

	t.Run("switches towards better-off acquaintances", func(t *testing.T) {
		m, _, farmer, townsman := prepare(t)

		require.NoError(t, exodus.Utility.Set(farmer, 1.0))
		require.NoError(t, exodus.Utility.Set(townsman, 2.0))

		ev := findEvent(t, m, "reconsider profession")
		ev.Do(0, farmer, rand.New(rand.NewSource(1)))

		got, ok := exodus.Profession.Get(farmer)
		require.True(t, ok)
		assert.Equal(t, exodus.Townsman, got)
	})

	t.Run("stays when doing at least as well", func(t *testing.T) {
		m, _, farmer, townsman := prepare(t)

		require.NoError(t, exodus.Utility.Set(farmer, 2.0))
		require.NoError(t, exodus.Utility.Set(townsman, 2.0))

		ev := findEvent(t, m, "reconsider profession")
		ev.Do(0, farmer, rand.New(rand.NewSource(1)))

		got, ok := exodus.Profession.Get(farmer)
		require.True(t, ok)
		assert.Equal(t, exodus.Farmer, got)
	})

	t.Run("stays without other-profession acquaintances", func(t *testing.T) {
		m, u, farmer, townsman := prepare(t)
		u.Culture().AcquaintanceNetwork().Unlink(farmer, townsman)

		require.NoError(t, exodus.Utility.Set(farmer, 0.0))

		ev := findEvent(t, m, "reconsider profession")
		ev.Do(0, farmer, rand.New(rand.NewSource(1)))

		got, ok := exodus.Profession.Get(farmer)
		require.True(t, ok)
		assert.Equal(t, exodus.Farmer, got)
	})

	t.Run("rewires towards the new profession", func(t *testing.T) {
		m, u, farmer, townsman := prepare(t)
		net := u.Culture().AcquaintanceNetwork()

		c := farmer.Cell()
		oldFriend := u.NewIndividual(c) // farmer by default
		peerFriend := u.NewIndividual(c)
		require.NoError(t, exodus.Profession.Set(oldFriend, exodus.Farmer))
		require.NoError(t, exodus.Profession.Set(peerFriend, exodus.Townsman))
		net.Link(farmer, oldFriend)
		net.Link(townsman, peerFriend)

		require.NoError(t, exodus.Utility.Set(farmer, 1.0))
		require.NoError(t, exodus.Utility.Set(townsman, 2.0))

		ev := findEvent(t, m, "reconsider profession")
		ev.Do(0, farmer, rand.New(rand.NewSource(1)))

		got, ok := exodus.Profession.Get(farmer)
		require.True(t, ok)
		assert.Equal(t, exodus.Townsman, got)

		// the single old-profession link is gone
		assert.False(t, net.HasLink(farmer, oldFriend))
		assert.True(t, net.HasLink(farmer, townsman))
	})
}
