package scheduler

// DefaultOptions returns the scheduler options matching spec §8 scenario 3
// ("default options"): one write per chain per batch, serialized.
func DefaultOptions() Options {
	return Options{
		GlobalMaxParallel:       8,
		DefaultPerChainParallel: 1,
		WritesPerChainSerial:    true,
	}
}
