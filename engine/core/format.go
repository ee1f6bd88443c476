package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatNumber renders an integer with thousands separators.
func FormatNumber(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize uses 1024 based units with up to two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	return s + " " + sizeUnits[i]
}

// FormatDuration prints sub-second durations in ms, otherwise seconds with two decimals.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
