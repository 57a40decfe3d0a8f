package audio

import "time"

// DropPolicy decides whether an incoming packet should reach the ring.
// index counts packets from 1 since the stream started.
type DropPolicy interface {
	Keep(fillPercent float64, elapsed time.Duration, index uint64) bool
}

type Stage struct {
	Until     time.Duration
	Threshold float64
}

// ThresholdPolicy tightens the allowed fill level as a call grows longer.
// Past ThinAfter it also discards every ThinEvery-th packet while the ring is
// above ThinAbove percent.
type ThresholdPolicy struct {
	Stages    []Stage
	Final     float64
	ThinAfter time.Duration
	ThinEvery uint64
	ThinAbove float64
}

func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		Stages: []Stage{
			{Until: 30 * time.Second, Threshold: 70},
			{Until: 120 * time.Second, Threshold: 60},
		},
		Final:     50,
		ThinAfter: 60 * time.Second,
		ThinEvery: 4,
		ThinAbove: 40,
	}
}

func (p ThresholdPolicy) Threshold(elapsed time.Duration) float64 {
	for _, s := range p.Stages {
		if elapsed < s.Until {
			return s.Threshold
		}
	}
	return p.Final
}

func (p ThresholdPolicy) Keep(fill float64, elapsed time.Duration, index uint64) bool {
	if fill > p.Threshold(elapsed) {
		return false
	}
	if p.ThinEvery > 0 && elapsed > p.ThinAfter && index%p.ThinEvery == 0 && fill > p.ThinAbove {
		return false
	}
	return true
}

// KeepAll never drops.
type KeepAll struct{}

func (KeepAll) Keep(float64, time.Duration, uint64) bool { return true }
