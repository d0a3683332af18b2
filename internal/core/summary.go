package core

import "sort"

// MonthlySummary aggregates income/expense/balance for one "YYYY-MM" key.
type MonthlySummary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// TransactionStatistics is the server-computed aggregate over transactions.
type TransactionStatistics struct {
	TotalIncome    float64                   `json:"totalIncome"`
	TotalExpense   float64                   `json:"totalExpense"`
	TotalNeutral   float64                   `json:"totalNeutral"`
	Balance        float64                   `json:"balance"`
	MonthlySummary map[string]MonthlySummary `json:"monthlySummary"`
}

// CategoryStat aggregates an amount and a record count for one category.
type CategoryStat struct {
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// TaskCounts is the server-computed task tally.
type TaskCounts struct {
	AllTasksTotal          int `json:"allTasksTotal"`
	InProgressTasksTotal   int `json:"inProgressTasksTotal"`
	HighPriorityTasksTotal int `json:"highPriorityTasksTotal"`
}

// QuadrantTasks partitions tasks into the four importance/urgency quadrants.
type QuadrantTasks struct {
	First  []Task `json:"first"`  // important and urgent
	Second []Task `json:"second"` // important, not urgent
	Third  []Task `json:"third"`  // not important, urgent
	Fourth []Task `json:"fourth"` // neither
}

// MonthlyIncome sums income amounts of records in the given year-month.
func MonthlyIncome(records []Transaction, yearMonth string) float64 {
	var sum float64
	for _, r := range records {
		if r.Type == Income && r.YearMonth == yearMonth {
			sum += r.Amount
		}
	}
	return sum
}

// MonthlyExpense sums expense amounts of records in the given year-month.
func MonthlyExpense(records []Transaction, yearMonth string) float64 {
	var sum float64
	for _, r := range records {
		if r.Type == Expense && r.YearMonth == yearMonth {
			sum += r.Amount
		}
	}
	return sum
}

// MonthlyBalance is income minus expense for the given year-month.
func MonthlyBalance(records []Transaction, yearMonth string) float64 {
	return MonthlyIncome(records, yearMonth) - MonthlyExpense(records, yearMonth)
}

// SummaryByMonth aggregates every loaded record into per-month summaries.
func SummaryByMonth(records []Transaction) map[string]MonthlySummary {
	summary := make(map[string]MonthlySummary)
	for _, r := range records {
		s := summary[r.YearMonth]
		switch r.Type {
		case Income:
			s.Income += r.Amount
		case Expense:
			s.Expense += r.Amount
		}
		s.Balance = s.Income - s.Expense
		summary[r.YearMonth] = s
	}
	return summary
}

// CategoryStatistics aggregates records of one type by category, optionally
// restricted to a single year-month (empty string means all months).
func CategoryStatistics(records []Transaction, t RecordType, yearMonth string) map[string]CategoryStat {
	stats := make(map[string]CategoryStat)
	for _, r := range records {
		if r.Type != t {
			continue
		}
		if yearMonth != "" && r.YearMonth != yearMonth {
			continue
		}
		s := stats[r.Category]
		s.Amount += r.Amount
		s.Count++
		stats[r.Category] = s
	}
	return stats
}

// AvailableMonths returns the distinct year-months present in the records,
// newest first.
func AvailableMonths(records []Transaction) []string {
	seen := make(map[string]struct{})
	var months []string
	for _, r := range records {
		if _, ok := seen[r.YearMonth]; !ok {
			seen[r.YearMonth] = struct{}{}
			months = append(months, r.YearMonth)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}

// PartitionQuadrants splits tasks into the four Eisenhower quadrants.
func PartitionQuadrants(tasks []Task) QuadrantTasks {
	var q QuadrantTasks
	for _, t := range tasks {
		switch {
		case t.Important() && t.Urgent():
			q.First = append(q.First, t)
		case t.Important():
			q.Second = append(q.Second, t)
		case t.Urgent():
			q.Third = append(q.Third, t)
		default:
			q.Fourth = append(q.Fourth, t)
		}
	}
	return q
}
