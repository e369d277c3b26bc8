package domain

import (
	"slices"
	"testing"
	"time"
)

func TestQueueLess(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []EscalationQueueItem{
		{ID: "c", Priority: 1, CreatedAt: base},
		{ID: "b", Priority: 3, CreatedAt: base.Add(time.Second)},
		{ID: "a", Priority: 1, CreatedAt: base},
		{ID: "d", Priority: 3, CreatedAt: base},
	}
	slices.SortFunc(items, func(x, y EscalationQueueItem) int {
		switch {
		case QueueLess(&x, &y):
			return -1
		case QueueLess(&y, &x):
			return 1
		}
		return 0
	})

	var got []string
	for _, item := range items {
		got = append(got, item.ID)
	}
	want := []string{"d", "b", "a", "c"}
	if !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestExpiredAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	due := now
	later := now.Add(time.Minute)

	cases := []struct {
		name string
		item EscalationQueueItem
		want bool
	}{
		{"pending due", EscalationQueueItem{Status: EscalationStatusPending, ExpiresAt: &due}, true},
		{"pending not due", EscalationQueueItem{Status: EscalationStatusPending, ExpiresAt: &later}, false},
		{"pending without expiry", EscalationQueueItem{Status: EscalationStatusPending}, false},
		{"assigned past expiry", EscalationQueueItem{Status: EscalationStatusAssigned, ExpiresAt: &due}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.ExpiredAt(now); got != tc.want {
				t.Fatalf("ExpiredAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEscalationStatusIsTerminal(t *testing.T) {
	for _, status := range ActiveEscalationStatuses {
		if status.IsTerminal() {
			t.Fatalf("%s reported terminal", status)
		}
	}
	for _, status := range []EscalationStatus{EscalationStatusResolved, EscalationStatusAbandoned, EscalationStatusExpired} {
		if !status.IsTerminal() {
			t.Fatalf("%s reported active", status)
		}
	}
}
