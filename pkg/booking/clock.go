package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// parseClock returns minutes since midnight for "HH:MM" or "HH:MM:SS".
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("time %q: bad minute", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("time %q: bad second", s)
		}
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// NormalizeClock turns "HH:MM" (or "HH:MM:SS") into "HH:MM:00"-style
// storage format. Seconds are dropped, bookings have minute precision.
func NormalizeClock(s string) (string, error) {
	m, err := parseClock(s)
	if err != nil {
		return "", err
	}
	return formatClock(m), nil
}

// EndTime adds d to start and wraps past midnight. The result is always
// "HH:MM:SS" with a literal ":00" seconds field.
func EndTime(start string, d time.Duration) (string, error) {
	if d < 0 || d%time.Minute != 0 {
		return "", fmt.Errorf("booking duration %s: must be a non-negative whole number of minutes", d)
	}
	m, err := parseClock(start)
	if err != nil {
		return "", err
	}
	end := (m + int(d/time.Minute)) % minutesPerDay
	return formatClock(end), nil
}
