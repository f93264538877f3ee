// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instructions

import (
	"fmt"
	"math"
	"time"
)

// DefaultWalkingSpeed is an average indoor walking pace in metres per second.
const DefaultWalkingSpeed = 1.2

// FormatDistance renders metres as "850 m" below one kilometre and "1.2 km"
// above.
func FormatDistance(metres float64) string {
	if metres < 1000 {
		return fmt.Sprintf("%.0f m", metres)
	}
	return fmt.Sprintf("%.1f km", metres/1000)
}

// WalkingDuration converts a distance to time at the given speed. A
// non-positive speed uses DefaultWalkingSpeed.
func WalkingDuration(metres, speed float64) time.Duration {
	if speed <= 0 {
		speed = DefaultWalkingSpeed
	}
	return time.Duration(metres / speed * float64(time.Second))
}

// EstimateWalkingTime renders the walking time for a distance, e.g.
// "About 45 seconds", "About 3 minutes" or "About 1.5 hours".
func EstimateWalkingTime(metres, speed float64) string {
	seconds := WalkingDuration(metres, speed).Seconds()
	switch {
	case seconds < 60:
		return "About " + plural(math.Round(seconds), "second")
	case seconds < 3600:
		return "About " + plural(math.Round(seconds/60), "minute")
	}
	return fmt.Sprintf("About %.1f hours", seconds/3600)
}

func plural(n float64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%.0f %ss", n, unit)
}
