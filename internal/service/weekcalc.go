package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ── 周历计算 ──
//
// 周实例以 ISO-8601 周为唯一性粒度："YYYY-WW" 作为 (模板, 周) 的自然键。
// 所有日期落点均从周一（周起始日）加偏移推出，不做时区抽象。

var (
	ErrInvalidDayToken = errors.New("无法识别的星期格式")
	ErrInvalidClock    = errors.New("时刻格式应为 HH:MM")
)

// englishDays 英文星期名（全称与三字缩写，统一小写后查表）
var englishDays = map[string]int{
	"monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4,
	"friday": 5, "saturday": 6, "sunday": 7,
	"mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6, "sun": 7,
}

// chineseDays 中文星期名（"星期X" 与 "周X" 两套写法）
var chineseDays = map[string]int{
	"星期一": 1, "星期二": 2, "星期三": 3, "星期四": 4,
	"星期五": 5, "星期六": 6, "星期日": 7, "星期天": 7,
	"周一": 1, "周二": 2, "周三": 3, "周四": 4,
	"周五": 5, "周六": 6, "周日": 7, "周天": 7,
}

// YearWeekKey 计算 ISO-8601 年-周键，格式 "YYYY-WW"
// 注意跨年周：2024-12-30 属于 2025 年第 1 周
func YearWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-%02d", year, week)
}

// WeekBounds 计算日期所在 ISO 周的周一与周日（时间部分归零）
func WeekBounds(t time.Time) (monday, sunday time.Time) {
	d := truncateToDate(t)
	offset := isoWeekday(d) - 1
	monday = d.AddDate(0, 0, -offset)
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday
}

// DateForDay 计算周起始日期（周一）加 dayOfWeek 偏移后的具体日期
func DateForDay(weekStart time.Time, dayOfWeek int) time.Time {
	return truncateToDate(weekStart).AddDate(0, 0, dayOfWeek-1)
}

// ParseDayOfWeek 解析星期标记为 1-7
// 接受数字 "1"-"7"、英文星期名、以及 "星期X" / "周X" 两套中文写法；
// 其余输入一律返回 ErrInvalidDayToken，不做模糊匹配
func ParseDayOfWeek(token string) (int, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return 0, ErrInvalidDayToken
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 7 {
			return n, nil
		}
		return 0, ErrInvalidDayToken
	}

	if n, ok := englishDays[strings.ToLower(s)]; ok {
		return n, nil
	}
	if n, ok := chineseDays[s]; ok {
		return n, nil
	}

	return 0, ErrInvalidDayToken
}

// combineDateTime 将日期与 "HH:MM" 时刻合成具体时间点
// 时刻解析失败时回退为当日零点（模板时段的时刻由入口校验保证合法）
func combineDateTime(date time.Time, hhmm string) time.Time {
	d := truncateToDate(date)
	parts := strings.SplitN(hhmm, ":", 3)
	if len(parts) < 2 {
		return d
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return d
	}
	return d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

// normalizeClock 将 "HH:MM:SS" 或 "H:MM" 归一化为 "HH:MM"
// 数据库 time 列读回时可能带秒
func normalizeClock(hhmm string) string {
	parts := strings.SplitN(hhmm, ":", 3)
	if len(parts) < 2 {
		return hhmm
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return hhmm
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// validateClock 校验 "HH:MM" 格式时刻
func validateClock(hhmm string) error {
	if _, err := time.Parse("15:04", normalizeClock(hhmm)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidClock, hhmm)
	}
	return nil
}

// isoWeekday 周一=1 ... 周日=7
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
