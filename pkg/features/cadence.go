package features

import (
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Cadence summarizes how regularly a frame is spaced relative to an expected step.
type Cadence struct {
	// Gaps counts consecutive pairs further apart than one step.
	Gaps int
	// Missing is the number of steps the gaps skip over.
	Missing int
	// Duplicates counts consecutive pairs sharing a timestamp.
	Duplicates int
	// Irregular counts consecutive pairs closer than one step but not equal.
	Irregular int
}

// Regular reports whether every consecutive pair is exactly one step apart.
func (c Cadence) Regular() bool {
	return c.Gaps == 0 && c.Duplicates == 0 && c.Irregular == 0
}

// CheckCadence walks a sorted frame and counts deviations from step spacing.
// Nothing is corrected: callers decide whether to warn or proceed.
func CheckCadence(frame models.FeatureFrame, step time.Duration) Cadence {
	var c Cadence
	if step <= 0 {
		return c
	}

	stepSec := step.Seconds()
	for i := 1; i < len(frame.Rows); i++ {
		prev, okPrev := frame.Rows[i-1]["timestamp"]
		cur, okCur := frame.Rows[i]["timestamp"]
		if !okPrev || !okCur {
			continue
		}

		diff := cur - prev
		switch {
		case diff == 0:
			c.Duplicates++
		case diff < stepSec:
			c.Irregular++
		case diff > stepSec:
			c.Gaps++
			c.Missing += int(diff/stepSec) - 1
		}
	}

	return c
}
