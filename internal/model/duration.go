package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrISOFormat = errors.New("invalid ISO8601 duration")

// ParseDuration accepts either a Go duration like "90s" or an ISO 8601
// duration like "PT1M30S". Negative durations are rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "P") {
		return ParseISODuration(s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

type isoUnit struct {
	designator byte
	size       time.Duration
	fraction   bool
}

var (
	isoDate = []isoUnit{{'D', 24 * time.Hour, false}}
	isoTime = []isoUnit{{'H', time.Hour, false}, {'M', time.Minute, false}, {'S', time.Second, true}}
)

// ParseISODuration parses PnDTnHnMnS. Years, months and weeks have no fixed
// length and only seconds may carry a fraction.
func ParseISODuration(s string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(s, "P")
	if !ok || rest == "" {
		return 0, ErrISOFormat
	}
	date, clock, hasT := strings.Cut(rest, "T")
	if hasT && clock == "" {
		return 0, ErrISOFormat
	}

	days, err := sumISO(date, isoDate)
	if err != nil {
		return 0, err
	}
	hms, err := sumISO(clock, isoTime)
	if err != nil {
		return 0, err
	}
	if days > math.MaxInt64-hms {
		return 0, ErrISOFormat
	}
	return days + hms, nil
}

// sumISO adds up the components of one part; designators must follow the
// order of units and appear at most once.
func sumISO(s string, units []isoUnit) (time.Duration, error) {
	var ret time.Duration
	for s != "" {
		i := strings.IndexFunc(s, func(r rune) bool {
			return (r < '0' || r > '9') && r != '.' && r != ','
		})
		if i <= 0 {
			return 0, ErrISOFormat
		}
		num, designator := s[:i], s[i]
		s = s[i+1:]

		for len(units) > 0 && units[0].designator != designator {
			units = units[1:]
		}
		if len(units) == 0 {
			return 0, ErrISOFormat
		}
		d, err := scaleISO(num, units[0])
		if err != nil {
			return 0, err
		}
		units = units[1:]

		if ret > math.MaxInt64-d {
			return 0, ErrISOFormat
		}
		ret += d
	}
	return ret, nil
}

func scaleISO(num string, u isoUnit) (time.Duration, error) {
	whole, frac, hasFrac := strings.Cut(strings.Replace(num, ",", ".", 1), ".")
	if whole == "" || (hasFrac && (!u.fraction || frac == "" || len(frac) > 9)) {
		return 0, ErrISOFormat
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || n > int64(math.MaxInt64/u.size) {
		return 0, ErrISOFormat
	}
	d := time.Duration(n) * u.size
	if !hasFrac {
		return d, nil
	}

	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrISOFormat
	}
	scale := time.Duration(1)
	for range len(frac) {
		scale *= 10
	}
	part := time.Duration(f) * u.size / scale
	if d > math.MaxInt64-part {
		return 0, ErrISOFormat
	}
	return d + part, nil
}
