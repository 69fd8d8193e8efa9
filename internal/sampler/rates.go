package sampler

// RateMbps converts two reads of a monotonic byte counter into a
// throughput over the interval. A decrease between reads means the
// counter reset; the rate clamps to zero rather than going negative.
func RateMbps(prevBytes, currBytes uint64, dtSeconds float64) float64 {
	if dtSeconds <= 0 {
		return 0
	}
	if currBytes < prevBytes {
		return 0
	}
	return 8 * float64(currBytes-prevBytes) / (dtSeconds * 1e6)
}

// DropDelta returns the growth of a cumulative drop counter between
// two reads, clamped to zero on counter reset.
func DropDelta(prevTotal, currTotal uint64) uint64 {
	if currTotal < prevTotal {
		return 0
	}
	return currTotal - prevTotal
}
