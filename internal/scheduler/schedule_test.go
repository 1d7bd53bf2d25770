package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Schedule
		spec string
	}{
		{raw: "0 3 * * *", want: Schedule{Cron: "0 3 * * *"}, spec: "0 3 * * *"},
		{raw: " @daily ", want: Schedule{Cron: "@daily"}, spec: "@daily"},
		{raw: "@every 6h", want: Schedule{Cron: "@every 6h"}, spec: "@every 6h"},
		{raw: "6h", want: Schedule{Every: 6 * time.Hour}, spec: "@every 6h0m0s"},
		{raw: "45s", want: Schedule{Every: 45 * time.Second}, spec: "@every 45s"},
		{raw: "24:00", want: Schedule{Every: 24 * time.Hour}, spec: "@every 24h0m0s"},
		{raw: "01:30", want: Schedule{Every: 90 * time.Minute}, spec: "@every 1h30m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseSchedule(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
			if got.Spec() != tt.spec {
				t.Fatalf("Spec() = %q, want %q", got.Spec(), tt.spec)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "00:00", "01:75", "1:5", "-5m", "0 99 * * *", "@sometimes"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}
