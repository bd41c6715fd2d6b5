package service

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestYearWeekKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"普通周中", date(2024, 6, 5), "2024-23"},
		{"周一当天", date(2024, 6, 3), "2024-23"},
		{"周日当天", date(2024, 6, 9), "2024-23"},
		{"跨年周归入次年", date(2024, 12, 30), "2025-01"},
		{"年初归入上年末周", date(2027, 1, 1), "2026-53"},
		{"单周数补零", date(2024, 1, 8), "2024-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YearWeekKey(tt.in); got != tt.want {
				t.Errorf("YearWeekKey(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		name       string
		in         time.Time
		wantMonday time.Time
		wantSunday time.Time
	}{
		{"周三", date(2024, 6, 5), date(2024, 6, 3), date(2024, 6, 9)},
		{"周一本身", date(2024, 6, 3), date(2024, 6, 3), date(2024, 6, 9)},
		{"周日本身", date(2024, 6, 9), date(2024, 6, 3), date(2024, 6, 9)},
		{"跨年周", date(2025, 1, 1), date(2024, 12, 30), date(2025, 1, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mon, sun := WeekBounds(tt.in)
			if !mon.Equal(tt.wantMonday) {
				t.Errorf("monday = %v, want %v", mon, tt.wantMonday)
			}
			if !sun.Equal(tt.wantSunday) {
				t.Errorf("sunday = %v, want %v", sun, tt.wantSunday)
			}
		})
	}

	// 带时分秒的输入应归零到日期
	mon, _ := WeekBounds(time.Date(2024, 6, 5, 18, 30, 12, 0, time.UTC))
	if !mon.Equal(date(2024, 6, 3)) {
		t.Errorf("时间部分未归零: %v", mon)
	}
}

func TestDateForDay(t *testing.T) {
	weekStart := date(2024, 6, 3)
	if got := DateForDay(weekStart, 1); !got.Equal(date(2024, 6, 3)) {
		t.Errorf("周一 = %v", got)
	}
	if got := DateForDay(weekStart, 5); !got.Equal(date(2024, 6, 7)) {
		t.Errorf("周五 = %v", got)
	}
	if got := DateForDay(weekStart, 7); !got.Equal(date(2024, 6, 9)) {
		t.Errorf("周日 = %v", got)
	}
}

func TestParseDayOfWeek(t *testing.T) {
	tests := []struct {
		token   string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"7", 7, false},
		{"Monday", 1, false},
		{"friday", 5, false},
		{"SUN", 7, false},
		{"Wed", 3, false},
		{"星期三", 3, false},
		{"星期天", 7, false},
		{"周五", 5, false},
		{"周日", 7, false},
		{" 周二 ", 2, false},
		{"0", 0, true},
		{"8", 0, true},
		{"", 0, true},
		{"someday", 0, true},
		{"星期八", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDayOfWeek(tt.token)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDayOfWeek(%q) 应当报错", tt.token)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDayOfWeek(%q) 意外出错: %v", tt.token, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDayOfWeek(%q) = %d, want %d", tt.token, got, tt.want)
		}
	}
}

func TestCombineDateTime(t *testing.T) {
	d := date(2024, 6, 3)
	got := combineDateTime(d, "14:30")
	want := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("combineDateTime = %v, want %v", got, want)
	}
	// 非法时刻回退为当日零点
	if got := combineDateTime(d, "oops"); !got.Equal(d) {
		t.Errorf("非法时刻应回退零点, got %v", got)
	}
}

func TestNormalizeClock(t *testing.T) {
	tests := []struct{ in, want string }{
		{"14:30", "14:30"},
		{"14:30:00", "14:30"},
		{"9:05", "09:05"},
		{"oops", "oops"},
	}
	for _, tt := range tests {
		if got := normalizeClock(tt.in); got != tt.want {
			t.Errorf("normalizeClock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
