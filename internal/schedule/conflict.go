package schedule

const minutesPerWeek = 7 * MinutesPerDay

// span is a half-open minute range [start, end) within one week.
type span struct {
	start, end int
}

func (a span) overlaps(b span) bool {
	return a.start < b.end && b.start < a.end
}

// daySpans converts a daily window to one or two half-open minute ranges
// within the 24h cycle.
func daySpans(start, end int) []span {
	if end >= start {
		return []span{{start, end}}
	}
	return []span{{start, MinutesPerDay}, {0, end}}
}

// weekSpans places the window on every scheduled day of the week. A wrapping
// window's tail belongs to the following day, so Saturday night spills into
// Sunday morning.
func weekSpans(s *Schedule) []span {
	var out []span
	for _, d := range s.Days {
		base := d * MinutesPerDay
		for i, sp := range daySpans(s.WindowStart, s.WindowEnd) {
			offset := base
			if i == 1 {
				offset += MinutesPerDay
			}
			start := (sp.start + offset) % minutesPerWeek
			out = append(out, span{start, start + (sp.end - sp.start)})
		}
	}
	return out
}

// Overlaps reports whether two schedules can claim the same minute of the week.
// The tail of a wrapping window falls on the following day, so Monday 22:00-02:00
// never collides with Monday 01:00-03:00, only with Tuesday's early hours.
func Overlaps(a, b *Schedule) bool {
	if !a.Wraps() && !b.Wraps() && !shareDay(a.Days, b.Days) {
		return false
	}
	for _, x := range weekSpans(a) {
		for _, y := range weekSpans(b) {
			if x.overlaps(y) {
				return true
			}
		}
	}
	return false
}

// CheckConflicts returns the enabled schedules in existing whose windows
// overlap candidate. The candidate itself (same id) is skipped, and a disabled
// candidate conflicts with nothing. Overlap is advisory: callers warn and let
// the operator proceed.
func CheckConflicts(candidate *Schedule, existing []Schedule) []Schedule {
	if !candidate.Enabled {
		return nil
	}
	var out []Schedule
	for i := range existing {
		s := &existing[i]
		if !s.Enabled || (candidate.ID != "" && s.ID == candidate.ID) {
			continue
		}
		if Overlaps(candidate, s) {
			out = append(out, *s)
		}
	}
	return out
}

func shareDay(a, b []int) bool {
	var set [7]bool
	for _, d := range a {
		if d >= 0 && d < 7 {
			set[d] = true
		}
	}
	for _, d := range b {
		if d >= 0 && d < 7 && set[d] {
			return true
		}
	}
	return false
}
