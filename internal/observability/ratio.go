package observability

import "strconv"

func parseRatio(raw string, def float64) float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
