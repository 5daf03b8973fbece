// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

package policy

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

// EvalContext carries the request-time facts conditions are checked
// against. Now defaults to time.Now() in Evaluate when zero.
type EvalContext struct {
	Now          time.Time
	SourceIP     net.IP
	RequestedTTL time.Duration
}

// conditionsSatisfied reports whether every condition on c holds for
// evalCtx. A nil c is vacuously satisfied.
func conditionsSatisfied(c *storage.PolicyConditions, evalCtx EvalContext) bool {
	if c == nil {
		return true
	}
	if c.TimeOfDayStart != nil && c.TimeOfDayEnd != nil {
		if !inTimeOfDayWindow(*c.TimeOfDayStart, *c.TimeOfDayEnd, evalCtx.Now) {
			return false
		}
	}
	if len(c.DaysOfWeek) > 0 {
		if !dayAllowed(c.DaysOfWeek, evalCtx.Now.Weekday()) {
			return false
		}
	}
	if len(c.SourceCIDRs) > 0 {
		if !sourceAllowed(c.SourceCIDRs, evalCtx.SourceIP) {
			return false
		}
	}
	if c.MaxTTL != nil {
		if evalCtx.RequestedTTL > *c.MaxTTL {
			return false
		}
	}
	return true
}

// inTimeOfDayWindow checks a "HH:MM" UTC window inclusive of both ends.
// A window where start > end wraps past midnight.
func inTimeOfDayWindow(start, end string, now time.Time) bool {
	startMin, okS := parseHHMM(start)
	endMin, okE := parseHHMM(end)
	if !okS || !okE {
		return true
	}
	nowMin := now.UTC().Hour()*60 + now.UTC().Minute()
	if startMin <= endMin {
		return nowMin >= startMin && nowMin <= endMin
	}
	return nowMin >= startMin || nowMin <= endMin
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// dayAllowed compares against Go's native time.Weekday (Sunday=0). The
// spec's wire format uses Monday=1..Sunday=7; callers translate at the
// API boundary via SpecWeekday before storing a PolicyConditions.
func dayAllowed(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// SpecWeekday converts the spec's 1=Monday..7=Sunday numbering into
// Go's native time.Weekday (0=Sunday..6=Saturday).
func SpecWeekday(n int) time.Weekday {
	if n == 7 {
		return time.Sunday
	}
	return time.Weekday(n)
}

func sourceAllowed(cidrs []string, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, raw := range cidrs {
		_, ipnet, err := net.ParseCIDR(raw)
		if err != nil {
			continue
		}
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
