package audio

// normalizeTarget is the peak amplitude after gain adjustment. Slightly below
// full scale to avoid clipping from float rounding.
const normalizeTarget = 0.95

// silenceFloor is the peak below which a cycle is treated as silence and left
// untouched; amplifying it would only boost noise.
const silenceFloor = 1e-4

// Normalize scales samples in place so the peak hits normalizeTarget.
// Near-silent input is returned unchanged. Returns the gain applied.
func Normalize(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak < silenceFloor {
		return 1
	}

	gain := float32(normalizeTarget) / peak
	if gain == 1 {
		return 1
	}
	for i := range samples {
		samples[i] *= gain
	}
	return gain
}
