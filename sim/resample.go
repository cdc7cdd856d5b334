package sim

import (
	"errors"
	"time"
)

// Resample 把 bars 合并成固定周期的 K 线，周期按 Truncate 对齐。
// 每根输出 bar 的时间取该周期内第一根的时间，成交量累加。
func Resample(bars []Bar, interval time.Duration) ([]Bar, error) {
	if interval <= 0 {
		return nil, errors.New("resample interval must be positive")
	}
	out := make([]Bar, 0, len(bars))
	var (
		current *Bar
		bucket  time.Time
	)
	for _, b := range bars {
		start := b.Time.Truncate(interval)
		if current == nil || !start.Equal(bucket) {
			if current != nil {
				out = append(out, *current)
			}
			nb := b
			current, bucket = &nb, start
			continue
		}
		if b.High > current.High {
			current.High = b.High
		}
		if b.Low < current.Low {
			current.Low = b.Low
		}
		current.Close = b.Close
		current.Volume += b.Volume
	}
	if current != nil {
		out = append(out, *current)
	}
	return out, nil
}
