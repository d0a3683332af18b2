package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransaction_Validate(t *testing.T) {
	valid := Transaction{
		Type:     Expense,
		Amount:   50,
		Category: "餐饮",
		Date:     "2024-03-15",
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid expense", func(tx *Transaction) {}, nil},
		{"valid income", func(tx *Transaction) { tx.Type = Income; tx.Category = "工资" }, nil},
		{"zero amount", func(tx *Transaction) { tx.Amount = 0 }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = -1 }, ErrInvalidAmount},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidRecordType},
		{"empty category", func(tx *Transaction) { tx.Category = "  " }, ErrEmptyCategory},
		{"bad date", func(tx *Transaction) { tx.Date = "15/03/2024" }, ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTask_Validate(t *testing.T) {
	valid := Task{
		Title:      "write report",
		TimePeriod: PeriodWeek,
		Importance: 3,
		Urgency:    2,
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr error
	}{
		{"valid", func(task *Task) {}, nil},
		{"blank title", func(task *Task) { task.Title = "   " }, ErrEmptyTitle},
		{"bad period", func(task *Task) { task.TimePeriod = "decade" }, ErrInvalidTimePeriod},
		{"negative importance", func(task *Task) { task.Importance = -1 }, ErrInvalidScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			err := task.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSavingsGoal_Validate(t *testing.T) {
	valid := SavingsGoal{
		Title:        "new laptop",
		TargetAmount: 1000,
		Period:       GoalQuarterly,
		EndDate:      "2024-12-31",
	}

	tests := []struct {
		name    string
		mutate  func(*SavingsGoal)
		wantErr error
	}{
		{"valid", func(g *SavingsGoal) {}, nil},
		{"blank title", func(g *SavingsGoal) { g.Title = "" }, ErrEmptyTitle},
		{"zero target", func(g *SavingsGoal) { g.TargetAmount = 0 }, ErrInvalidTarget},
		{"bad period", func(g *SavingsGoal) { g.Period = "decade" }, ErrInvalidGoalPeriod},
		{"bad end date", func(g *SavingsGoal) { g.EndDate = "soon" }, ErrInvalidEndDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			err := g.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestYearMonthOf(t *testing.T) {
	ym, err := YearMonthOf("2024-03-15")
	if err != nil {
		t.Fatalf("YearMonthOf() error = %v", err)
	}
	if ym != "2024-03" {
		t.Errorf("YearMonthOf() = %q, want %q", ym, "2024-03")
	}

	if _, err := YearMonthOf("not-a-date"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("YearMonthOf() error = %v, want ErrInvalidDate", err)
	}
}

func TestSavingsGoal_Progress_Clamped(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		target  float64
		want    float64
	}{
		{"halfway", 500, 1000, 50},
		{"over target clamps to 100", 1200, 1000, 100},
		{"exactly on target", 1000, 1000, 100},
		{"negative current clamps to 0", -50, 1000, 0},
		{"zero target", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := SavingsGoal{CurrentAmount: tt.current, TargetAmount: tt.target}
			if got := g.Progress(); got != tt.want {
				t.Errorf("Progress() = %v, want %v", got, tt.want)
			}
			if got := g.Progress(); got < 0 || got > 100 {
				t.Errorf("Progress() = %v, outside [0,100]", got)
			}
		})
	}
}

func TestSavingsGoal_ProgressDetails(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("overfunded goal", func(t *testing.T) {
		g := SavingsGoal{TargetAmount: 1000, CurrentAmount: 1200, EndDate: "2024-03-31"}
		d := g.ProgressDetails(now)

		if d.Progress != 100 {
			t.Errorf("Progress = %v, want 100", d.Progress)
		}
		if d.RemainingAmount != 0 {
			t.Errorf("RemainingAmount = %v, want 0", d.RemainingAmount)
		}
		if d.DailyContributionNeeded != 0 {
			t.Errorf("DailyContributionNeeded = %v, want 0", d.DailyContributionNeeded)
		}
	})

	t.Run("active goal", func(t *testing.T) {
		g := SavingsGoal{TargetAmount: 1000, CurrentAmount: 400, EndDate: "2024-03-31"}
		d := g.ProgressDetails(now)

		if d.Progress != 40 {
			t.Errorf("Progress = %v, want 40", d.Progress)
		}
		if d.RemainingAmount != 600 {
			t.Errorf("RemainingAmount = %v, want 600", d.RemainingAmount)
		}
		if d.RemainingDays != 30 {
			t.Errorf("RemainingDays = %v, want 30", d.RemainingDays)
		}
		if d.DailyContributionNeeded != 20 {
			t.Errorf("DailyContributionNeeded = %v, want 20", d.DailyContributionNeeded)
		}
	})

	t.Run("expired goal", func(t *testing.T) {
		g := SavingsGoal{TargetAmount: 1000, CurrentAmount: 400, EndDate: "2024-01-31"}
		d := g.ProgressDetails(now)

		if d.RemainingDays != 0 {
			t.Errorf("RemainingDays = %v, want 0", d.RemainingDays)
		}
		if d.DailyContributionNeeded != 0 {
			t.Errorf("DailyContributionNeeded = %v, want 0", d.DailyContributionNeeded)
		}
	})
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		importance int
		urgency    int
		want       Priority
	}{
		{3, 3, PriorityHigh},
		{5, 4, PriorityHigh},
		{2, 2, PriorityLow},
		{0, 0, PriorityLow},
		{3, 2, PriorityMedium},
		{1, 4, PriorityMedium},
	}

	for _, tt := range tests {
		if got := PriorityFor(tt.importance, tt.urgency); got != tt.want {
			t.Errorf("PriorityFor(%d, %d) = %v, want %v", tt.importance, tt.urgency, got, tt.want)
		}
	}
}

func TestIsPresetCategory(t *testing.T) {
	if !IsPresetCategory(Expense, "餐饮") {
		t.Error("餐饮 should be a preset expense category")
	}
	if !IsPresetCategory(Income, "工资") {
		t.Error("工资 should be a preset income category")
	}
	if IsPresetCategory(Expense, "工资") {
		t.Error("工资 should not be a preset expense category")
	}
	if IsPresetCategory(Income, "彩票") {
		t.Error("彩票 should not be a preset income category")
	}
}
