package scheduler

import "sort"

// Overlaps reports whether two bookings intersect in both date range and daily time window.
func Overlaps(a, b Booking) bool {
	datesIntersect := !DateOf(a.StartDate).After(DateOf(b.EndDate)) && !DateOf(a.EndDate).Before(DateOf(b.StartDate))
	timesIntersect := a.StartTime < b.EndTime && a.EndTime > b.StartTime
	return datesIntersect && timesIntersect
}

// DetectConflicts returns the active bookings of the candidate's room that overlap it.
// The candidate itself is skipped so edits can be checked against the stored set.
func DetectConflicts(existing []Booking, candidate Booking) []Booking {
	var conflicts []Booking
	for _, other := range existing {
		if other.RoomID != candidate.RoomID {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if !other.Status.Active() {
			continue
		}
		if Overlaps(candidate, other) {
			conflicts = append(conflicts, other)
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		if !conflicts[i].StartDate.Equal(conflicts[j].StartDate) {
			return conflicts[i].StartDate.Before(conflicts[j].StartDate)
		}
		return conflicts[i].StartTime < conflicts[j].StartTime
	})
	return conflicts
}
