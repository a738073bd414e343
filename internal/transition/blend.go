package transition

import "github.com/dokzlo13/huestrip/internal/color"

// Channel moves cur toward target by at most amount and never past it.
// An amount of 0 is treated as 1 so a fade cannot stall.
func Channel(cur, target, amount uint8) uint8 {
	if amount == 0 {
		amount = 1
	}
	if cur == target {
		return cur
	}
	if cur < target {
		if target-cur <= amount {
			return target
		}
		return cur + amount
	}
	if cur-target <= amount {
		return target
	}
	return cur - amount
}

// Toward blends every channel of cur toward target.
func Toward(cur, target color.RGB, amount uint8) color.RGB {
	return color.RGB{
		R: Channel(cur.R, target.R, amount),
		G: Channel(cur.G, target.G, amount),
		B: Channel(cur.B, target.B, amount),
	}
}

// FadeRange blends the pixels px[first..last] (inclusive) toward target.
// Indices outside px are ignored.
func FadeRange(px []color.RGB, first, last int, target color.RGB, amount uint8) {
	if first < 0 {
		first = 0
	}
	if last >= len(px) {
		last = len(px) - 1
	}
	for i := first; i <= last; i++ {
		px[i] = Toward(px[i], target, amount)
	}
}
