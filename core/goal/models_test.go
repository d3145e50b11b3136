package goal

import (
	"testing"
	"time"

	"github.com/aaronlou/innergrow.ai/core"
)

func TestGoal_IsOverdue(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)
	completed := &Status{NameEn: StatusCompleted}
	active := &Status{NameEn: StatusActive}

	tests := []struct {
		name string
		goal Goal
		want bool
	}{
		{name: "no target date", goal: Goal{Status: active}, want: false},
		{name: "past date", goal: Goal{Status: active, TargetDate: core.NewDate(now.AddDate(0, 0, -1))}, want: true},
		{name: "due today", goal: Goal{Status: active, TargetDate: core.NewDate(now)}, want: false},
		{name: "future date", goal: Goal{Status: active, TargetDate: core.NewDate(now.AddDate(0, 1, 0))}, want: false},
		{name: "past but completed", goal: Goal{Status: completed, TargetDate: core.NewDate(now.AddDate(-1, 0, 0))}, want: false},
		{name: "past without status", goal: Goal{TargetDate: core.NewDate(now.AddDate(0, 0, -3))}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.goal.IsOverdue(now); got != tt.want {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}
