package service

import "time"

// Clock abstracts time.Now so tests control timestamps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// historyStep separates entries written by one operation so they sort in write order.
const historyStep = time.Millisecond

// maxSyncAttempts bounds how often a ticket's aggregate is recomputed after losing a race.
const maxSyncAttempts = 3
