package agent

import (
	"math"
	"strings"
)

// Bucket переводит длительность в индекс бакета гистограммы.
// Интервалы полуоткрытые [k*interval, (k+1)*interval), последний бакет открыт справа.
func Bucket(elapsedMs int64, intervalSeconds float64, numBuckets int) int {
	if numBuckets <= 0 || intervalSeconds <= 0 || elapsedMs <= 0 {
		return 0
	}

	intervalMs := intervalSeconds * 1000
	elapsed := float64(elapsedMs)
	if elapsed > float64(numBuckets)*intervalMs {
		return numBuckets - 1
	}

	idx := int(math.Floor(elapsed / intervalMs))
	if idx >= numBuckets {
		return numBuckets - 1
	}
	return idx
}

// LabelIndex индекс первой метки, которая содержится в observed (без учёта регистра).
// Если ни одна не подошла - последний индекс.
func LabelIndex(labels []string, observed string) int {
	observed = strings.ToLower(observed)
	for i, label := range labels {
		if strings.Contains(observed, strings.ToLower(label)) {
			return i
		}
	}
	return len(labels) - 1
}
