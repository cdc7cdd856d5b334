package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Bar 一根 K 线。
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

var barTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// LoadBarsCSV 读取 time,open,high,low,close[,volume] 格式的 K 线文件。
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadBarsCSV 允许一行表头，跳过空行；时间必须递增。
func ReadBarsCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []Bar
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		b, err := parseBar(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(bars); n > 0 && !b.Time.After(bars[n-1].Time) {
			return nil, fmt.Errorf("line %d: bar time %s not after %s", line, b.Time.Format(time.RFC3339), bars[n-1].Time.Format(time.RFC3339))
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBar(row []string) (Bar, error) {
	if len(row) < 5 {
		return Bar{}, fmt.Errorf("want at least 5 fields, got %d", len(row))
	}
	t, err := parseBarTime(strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, err
	}
	vals := make([]float64, 5)
	for i := 1; i < len(row) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q: %w", row[i], err)
		}
		vals[i-1] = v
	}
	b := Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if b.Close <= 0 {
		return Bar{}, fmt.Errorf("close must be > 0, got %v", b.Close)
	}
	return b, nil
}

func parseBarTime(s string) (time.Time, error) {
	for _, layout := range barTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// TradingDays 行情覆盖的自然日数量。
func TradingDays(bars []Bar) int {
	days := make(map[string]struct{})
	for _, b := range bars {
		days[b.Time.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
