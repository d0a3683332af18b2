package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  RecordType = "income"
	Expense RecordType = "expense"

	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"

	PeriodWeek  TimePeriod = "week"
	PeriodMonth TimePeriod = "month"
	PeriodYear  TimePeriod = "year"
	PeriodNone  TimePeriod = "none"

	GoalMonthly    GoalPeriod = "month"
	GoalQuarterly  GoalPeriod = "quarter"
	GoalHalfYearly GoalPeriod = "half_year"
	GoalYearly     GoalPeriod = "year"

	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type (
	RecordType string
	TaskStatus string
	TimePeriod string
	GoalPeriod string
	Priority   string

	// Transaction is a single income or expense record.
	Transaction struct {
		ID        string     `json:"id"`
		Type      RecordType `json:"type"`
		Amount    float64    `json:"amount"`
		Category  string     `json:"category"`
		Remark    string     `json:"remark"`
		Date      string     `json:"date"` // YYYY-MM-DD
		YearMonth string     `json:"yearMonth"`
	}

	// Task is a to-do item classified by time period and an
	// importance/urgency pair.
	Task struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description,omitempty"`
		Status      TaskStatus `json:"status"`
		TimePeriod  TimePeriod `json:"timePeriod"`
		Importance  int        `json:"importance"`
		Urgency     int        `json:"urgency"`
		DueDate     string     `json:"dueDate,omitempty"`
		CreatedAt   string     `json:"createdAt,omitempty"`
		UpdatedAt   string     `json:"updatedAt,omitempty"`
	}

	// SavingsGoal tracks saved amount against a target with a deadline.
	SavingsGoal struct {
		ID            string     `json:"id"`
		Title         string     `json:"title"`
		TargetAmount  float64    `json:"targetAmount"`
		CurrentAmount float64    `json:"currentAmount"`
		Description   string     `json:"description,omitempty"`
		Period        GoalPeriod `json:"period"`
		EndDate       string     `json:"endDate"` // YYYY-MM-DD
		CreatedAt     string     `json:"createdAt,omitempty"`
		UpdatedAt     string     `json:"updatedAt,omitempty"`
		IsCompleted   bool       `json:"isCompleted"`
	}

	// GoalProgressDetails extends a goal with derived projection figures.
	GoalProgressDetails struct {
		SavingsGoal
		Progress                float64 `json:"progress"`
		RemainingAmount         float64 `json:"remainingAmount"`
		RemainingDays           int     `json:"remainingDays"`
		DailyContributionNeeded float64 `json:"dailyContributionNeeded"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRecordType = errors.New("invalid record type")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyTitle        = errors.New("empty title")
	ErrInvalidTimePeriod = errors.New("invalid time period")
	ErrInvalidScore      = errors.New("invalid importance/urgency score")
	ErrInvalidTarget     = errors.New("invalid target amount")
	ErrInvalidGoalPeriod = errors.New("invalid goal period")
	ErrInvalidEndDate    = errors.New("invalid end date")
)

// DateLayout is the wire format for dates, matching the backend.
const DateLayout = "2006-01-02"

// PresetCategories lists the preset income/expense categories. A category
// outside this list is accepted with a warning, never rejected.
var PresetCategories = map[RecordType][]string{
	Income:  {"工资", "奖金", "投资收益", "兼职", "礼金", "其他收入"},
	Expense: {"餐饮", "交通", "购物", "娱乐", "医疗", "教育", "住房", "其他支出"},
}

// IsPresetCategory reports whether category belongs to the preset list for
// the given record type.
func IsPresetCategory(t RecordType, category string) bool {
	for _, c := range PresetCategories[t] {
		if c == category {
			return true
		}
	}
	return false
}

func (t RecordType) IsValid() bool {
	return t == Income || t == Expense
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func (p TimePeriod) IsValid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodYear, PeriodNone:
		return true
	default:
		return false
	}
}

func (p GoalPeriod) IsValid() bool {
	switch p {
	case GoalMonthly, GoalQuarterly, GoalHalfYearly, GoalYearly:
		return true
	default:
		return false
	}
}

// YearMonthOf derives the "YYYY-MM" key from a YYYY-MM-DD date string.
func YearMonthOf(date string) (string, error) {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", ErrInvalidDate
	}
	return parsed.Format("2006-01"), nil
}

// PriorityFor derives the coarse priority label from numeric scores.
// Both scores high means high priority, both low means low, anything
// mixed lands in the middle.
func PriorityFor(importance, urgency int) Priority {
	switch {
	case importance >= 3 && urgency >= 3:
		return PriorityHigh
	case importance <= 2 && urgency <= 2:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Important reports whether the task counts as important for quadrant
// classification. The numeric scheme is authoritative: a zero score is
// "not important", anything above is.
func (t Task) Important() bool { return t.Importance > 0 }

// Urgent reports whether the task counts as urgent for quadrant
// classification.
func (t Task) Urgent() bool { return t.Urgency > 0 }

// Progress returns the completion percentage clamped to [0, 100].
func (g SavingsGoal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	progress := g.CurrentAmount / g.TargetAmount * 100
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// ProgressDetails computes the derived projection figures for a goal as of
// the given instant.
func (g SavingsGoal) ProgressDetails(now time.Time) GoalProgressDetails {
	details := GoalProgressDetails{
		SavingsGoal: g,
		Progress:    g.Progress(),
	}

	remaining := g.TargetAmount - g.CurrentAmount
	if remaining < 0 {
		remaining = 0
	}
	details.RemainingAmount = remaining

	if end, err := time.Parse(DateLayout, g.EndDate); err == nil {
		days := int(end.Sub(now).Hours() / 24)
		if end.Sub(now) > time.Duration(days)*24*time.Hour {
			days++ // ceil partial days
		}
		if days < 0 {
			days = 0
		}
		details.RemainingDays = days
	}

	if details.RemainingDays > 0 {
		details.DailyContributionNeeded = remaining / float64(details.RemainingDays)
	}

	return details
}

func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidRecordType
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if !t.TimePeriod.IsValid() {
		return ErrInvalidTimePeriod
	}
	if t.Importance < 0 || t.Urgency < 0 {
		return ErrInvalidScore
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if g.TargetAmount <= 0 {
		return ErrInvalidTarget
	}
	if !g.Period.IsValid() {
		return ErrInvalidGoalPeriod
	}
	if _, err := time.Parse(DateLayout, g.EndDate); err != nil {
		return ErrInvalidEndDate
	}
	return nil
}
