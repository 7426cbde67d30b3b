// Package aggregate buckets and counts booking-like records for list views
// and dashboard tiles.
package aggregate

import (
	"supperclub/internal/models"
	"supperclub/internal/pricing"
)

// Groups maps a key to the records sharing it. Keys keeps first-seen order;
// records inside a bucket keep source order.
type Groups[K comparable, T any] struct {
	Keys    []K
	Buckets map[K][]T
}

// Get returns the bucket for a key (nil when absent).
func (g Groups[K, T]) Get(key K) []T {
	return g.Buckets[key]
}

// Len returns the number of buckets.
func (g Groups[K, T]) Len() int {
	return len(g.Keys)
}

// Size returns the number of records across all buckets.
func (g Groups[K, T]) Size() int {
	n := 0
	for _, bucket := range g.Buckets {
		n += len(bucket)
	}
	return n
}

// GroupByKey buckets records by keyFn in a single pass.
func GroupByKey[T any, K comparable](records []T, keyFn func(T) K) Groups[K, T] {
	g := Groups[K, T]{
		Keys:    make([]K, 0),
		Buckets: make(map[K][]T),
	}
	for _, r := range records {
		key := keyFn(r)
		if _, seen := g.Buckets[key]; !seen {
			g.Keys = append(g.Keys, key)
		}
		g.Buckets[key] = append(g.Buckets[key], r)
	}
	return g
}

// Count returns how many records satisfy pred.
func Count[T any](records []T, pred func(T) bool) int {
	n := 0
	for _, r := range records {
		if pred(r) {
			n++
		}
	}
	return n
}

// CountBy tallies records per key.
func CountBy[T any, K comparable](records []T, keyFn func(T) K) map[K]int {
	counts := make(map[K]int)
	for _, r := range records {
		counts[keyFn(r)]++
	}
	return counts
}

// Percent returns round(part/whole*100), or 0 when whole is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(pricing.RoundHalfUp(int64(part)*100, int64(whole)))
}

// UtilizationRate returns booked seats over capacity as a rounded percentage.
func UtilizationRate(slots []models.SessionCapacity) int {
	booked, capacity := 0, 0
	for _, s := range slots {
		booked += s.Booked
		capacity += s.Capacity
	}
	return Percent(booked, capacity)
}

// ByDate and BySession are the key functions used by list views.
func ByDate(r models.BookingRecord) string { return r.DateKey() }

func BySession(r models.BookingRecord) string { return r.SessionType.String() }
