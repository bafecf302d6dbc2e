package audiocore

import (
	"fmt"
	"strings"

	"github.com/boxrec/boxrec/internal/errors"
)

// MixPolicy selects how the two microphone channels are combined. The
// numeric values match the recording.raw_mode setting.
type MixPolicy int

const (
	MixStereo      MixPolicy = 0 // L,R passthrough
	MixLeftOnly    MixPolicy = 1 // L,L
	MixRightOnly   MixPolicy = 2 // R,R
	MixMonoDownmix MixPolicy = 3 // m,m with m = floor((L+R)/2)
)

// DefaultMixPolicy is used when no setting is present.
const DefaultMixPolicy = MixMonoDownmix

var mixPolicyNames = map[MixPolicy]string{
	MixStereo:      "stereo",
	MixLeftOnly:    "left",
	MixRightOnly:   "right",
	MixMonoDownmix: "mono",
}

func (p MixPolicy) String() string {
	if name, ok := mixPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("MixPolicy(%d)", int(p))
}

// Valid reports whether p is one of the four known policies.
func (p MixPolicy) Valid() bool {
	_, ok := mixPolicyNames[p]
	return ok
}

// Next cycles through the policies in raw_mode order.
func (p MixPolicy) Next() MixPolicy {
	return (p + 1) % 4
}

// ParseMixPolicy accepts a policy name or its raw_mode number.
func ParseMixPolicy(s string) (MixPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range mixPolicyNames {
		if s == name || s == fmt.Sprint(int(p)) {
			return p, nil
		}
	}
	switch s {
	case "l", "left_only":
		return MixLeftOnly, nil
	case "r", "right_only":
		return MixRightOnly, nil
	case "downmix", "mono_downmix":
		return MixMonoDownmix, nil
	}
	return 0, errors.Newf("unknown mix policy %q", s).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("allowed", "stereo, left, right, mono").
		Build()
}

// Mix applies policy to interleaved stereo input and returns a new
// interleaved stereo slice.
//
// Output is always two channels even for the single-channel policies. Many
// players mishandle mono WAV from this device class, so the container always
// declares two channels and only the content changes. This is a playback
// compatibility shim, not a DSP decision.
func Mix(policy MixPolicy, in []int16) []int16 {
	out := make([]int16, len(in)&^1)
	MixInto(policy, out, in)
	return out
}

// MixInto is Mix writing into dst, which must hold at least len(in) samples.
// dst and in may be the same slice. A trailing odd sample is ignored.
// Returns the number of samples written.
func MixInto(policy MixPolicy, dst, in []int16) int {
	n := len(in) &^ 1
	switch policy {
	case MixStereo:
		copy(dst[:n], in[:n])
	case MixLeftOnly:
		for i := 0; i < n; i += 2 {
			l := in[i]
			dst[i], dst[i+1] = l, l
		}
	case MixRightOnly:
		for i := 0; i < n; i += 2 {
			r := in[i+1]
			dst[i], dst[i+1] = r, r
		}
	default:
		for i := 0; i < n; i += 2 {
			m := downmix(in[i], in[i+1])
			dst[i], dst[i+1] = m, m
		}
	}
	return n
}

// downmix averages in 32-bit arithmetic. The arithmetic shift floors, so
// the result always fits in int16.
func downmix(l, r int16) int16 {
	return int16((int32(l) + int32(r)) >> 1)
}

// Fold collapses interleaved stereo into one channel for the front-end,
// appending to dst. Channels that are already equal fold to themselves.
func Fold(dst, stereo []int16) []int16 {
	for i := 0; i+1 < len(stereo); i += 2 {
		dst = append(dst, downmix(stereo[i], stereo[i+1]))
	}
	return dst
}

// Expand duplicates mono samples into interleaved stereo, appending to dst.
func Expand(dst, mono []int16) []int16 {
	for _, s := range mono {
		dst = append(dst, s, s)
	}
	return dst
}
