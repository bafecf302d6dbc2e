package audiocore

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxrec/boxrec/internal/errors"
)

func floorAvg(l, r int16) int16 {
	return int16(math.Floor(float64(int32(l)+int32(r)) / 2))
}

func mixPairs(t *testing.T, pairs [][2]int16) []int16 {
	t.Helper()
	in := make([]int16, 0, len(pairs)*2)
	for _, p := range pairs {
		in = append(in, p[0], p[1])
	}
	return in
}

func TestMixPolicies(t *testing.T) {
	t.Parallel()

	edge := []int16{math.MinInt16, math.MinInt16 + 1, -1, 0, 1, 100, 200, math.MaxInt16 - 1, math.MaxInt16}
	var pairs [][2]int16
	for _, l := range edge {
		for _, r := range edge {
			pairs = append(pairs, [2]int16{l, r})
		}
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 2000 {
		pairs = append(pairs, [2]int16{int16(rng.IntN(1 << 16)), int16(rng.IntN(1 << 16))})
	}
	in := mixPairs(t, pairs)

	tests := []struct {
		name   string
		policy MixPolicy
		want   func(l, r int16) (int16, int16)
	}{
		{"stereo", MixStereo, func(l, r int16) (int16, int16) { return l, r }},
		{"left only", MixLeftOnly, func(l, _ int16) (int16, int16) { return l, l }},
		{"right only", MixRightOnly, func(_, r int16) (int16, int16) { return r, r }},
		{"mono downmix", MixMonoDownmix, func(l, r int16) (int16, int16) {
			m := floorAvg(l, r)
			return m, m
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Mix(tt.policy, in)
			require.Len(t, out, len(in), "output is always two channels")
			for i, p := range pairs {
				wl, wr := tt.want(p[0], p[1])
				if out[2*i] != wl || out[2*i+1] != wr {
					t.Fatalf("pair %d (%d,%d): got (%d,%d), want (%d,%d)",
						i, p[0], p[1], out[2*i], out[2*i+1], wl, wr)
				}
			}
		})
	}
}

func TestMonoDownmixExtremes(t *testing.T) {
	t.Parallel()

	out := Mix(MixMonoDownmix, []int16{math.MaxInt16, math.MaxInt16, math.MinInt16, math.MinInt16, -1, 0, 100, 200})
	assert.Equal(t, []int16{
		math.MaxInt16, math.MaxInt16,
		math.MinInt16, math.MinInt16,
		-1, -1, // floor(-0.5)
		150, 150,
	}, out)
}

func TestMixIntoInPlace(t *testing.T) {
	t.Parallel()

	buf := []int16{10, 20, 30, 40, 7}
	n := MixInto(MixRightOnly, buf, buf)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int16{20, 20, 40, 40}, buf[:n])
}

func TestFoldExpand(t *testing.T) {
	t.Parallel()

	stereo := []int16{100, 200, -3, -4, 5, 5}
	mono := Fold(nil, stereo)
	assert.Equal(t, []int16{150, -4, 5}, mono)
	assert.Equal(t, []int16{150, 150, -4, -4, 5, 5}, Expand(nil, mono))

	// Already-mixed single-channel content folds losslessly.
	mixed := Mix(MixLeftOnly, []int16{math.MinInt16, 9, math.MaxInt16, 0})
	assert.Equal(t, mixed, Expand(nil, Fold(nil, mixed)))
}

func TestParseMixPolicy(t *testing.T) {
	t.Parallel()

	cases := map[string]MixPolicy{
		"stereo": MixStereo,
		"0":      MixStereo,
		"Left":   MixLeftOnly,
		"r":      MixRightOnly,
		"3":      MixMonoDownmix,
		" mono ": MixMonoDownmix,
	}
	for in, want := range cases {
		got, err := ParseMixPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMixPolicy("surround")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestMixPolicyStringAndNext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mono", MixMonoDownmix.String())
	assert.Equal(t, "MixPolicy(9)", MixPolicy(9).String())
	assert.False(t, MixPolicy(9).Valid())
	assert.Equal(t, MixStereo, MixMonoDownmix.Next())
	assert.Equal(t, MixLeftOnly, MixStereo.Next())
}

func TestPCMRoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	p := AppendS16LE(nil, samples)
	require.Len(t, p, 10)
	assert.Equal(t, []byte{0xff, 0x7f}, p[6:8])
	assert.Equal(t, samples, DecodeS16LE(nil, p))
}
