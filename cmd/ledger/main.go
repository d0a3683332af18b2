// Command ledger is the terminal front-end of the small-ledger client: it
// records income and expenses, manages to-do tasks and savings goals, and
// talks to the remote backend or, in local mode, to the on-device ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/P4X666/small-ledger/internal/amqp"
	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/auth"
	"github.com/P4X666/small-ledger/internal/cli"
	"github.com/P4X666/small-ledger/internal/config"
	"github.com/P4X666/small-ledger/internal/core"
	"github.com/P4X666/small-ledger/internal/log"
	"github.com/P4X666/small-ledger/internal/services"
	"github.com/P4X666/small-ledger/internal/storage"
	"github.com/P4X666/small-ledger/internal/store"
)

const usageText = `用法: ledger <命令> [参数]

命令:
  login      登录
  register   注册
  record     记账 (add | list | stats | del)
  task       任务 (add | list | done | del | quadrant)
  goal       攒钱目标 (add | list | save | progress)
`

// terminalNavigator satisfies auth.Navigator for a process with no page
// stack: an expired session just prints the re-login hint.
type terminalNavigator struct{}

func (terminalNavigator) CurrentRoute() string { return "cli" }

func (terminalNavigator) RelaunchToLogin() error {
	fmt.Fprintln(os.Stderr, "登录已过期，请重新登录: ledger login")
	return nil
}

type app struct {
	cfg    *config.Config
	logger *log.Logger
	repo   *storage.LocalRepository
	tokens *auth.TokenStore
	client *api.Client

	accounting *store.AccountingStore
	todo       *store.TodoStore
	goals      *store.GoalsStore
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	repo := cli.InitLocalStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	tokens := auth.NewTokenStore(repo, logger)
	guard := auth.NewRedirectGuard(terminalNavigator{}, logger)
	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout,
		api.WithTokenSource(tokens),
		api.WithAuthFailureHook(guard.Redirect),
		api.WithLogger(logger))

	a := &app{
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		tokens:     tokens,
		client:     client,
		accounting: store.NewAccountingStore(client.Transactions, cfg.PageSize, logger),
		todo:       store.NewTodoStore(client.Tasks, cfg.PageSize, logger),
		goals:      store.NewGoalsStore(client.Goals, cfg.PageSize, logger),
	}

	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "login":
		err = a.runLogin(ctx, os.Args[2:])
	case "register":
		err = a.runRegister(ctx, os.Args[2:])
	case "record":
		err = a.runRecord(ctx, os.Args[2:])
	case "task":
		err = a.runTask(ctx, os.Args[2:])
	case "goal":
		err = a.runGoal(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", "", "用户名")
	password := fs.String("p", "", "密码")
	fs.Parse(args)

	result, err := a.client.Auth.Login(ctx, api.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	if err := a.tokens.Set(result.Token); err != nil {
		return err
	}
	if err := a.tokens.SetUser(auth.UserInfo{ID: result.User.ID, Username: result.User.Username}); err != nil {
		return err
	}
	fmt.Printf("欢迎, %s\n", result.User.Username)
	return nil
}

func (a *app) runRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("u", "", "用户名")
	password := fs.String("p", "", "密码")
	fs.Parse(args)

	user, err := a.client.Auth.Register(ctx, api.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("注册成功: %s\n", user.Username)
	return nil
}

// localLedger builds the offline-first service when DATA_BACKEND=local.
func (a *app) localLedger() *services.LedgerService {
	var publisher services.SyncPublisher
	if a.cfg.AMQPURL != "" {
		client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
		if err != nil {
			a.logger.Warn("AMQP unavailable, records wait for the backlog pass",
				log.FieldError, err)
		} else {
			publisher = client
		}
	}
	return services.NewLedgerService(a.repo, publisher, a.logger)
}

func (a *app) runRecord(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger record <add|list|stats|del> [参数]")
	}
	switch args[0] {
	case "add":
		return a.recordAdd(ctx, args[1:])
	case "list":
		return a.recordList(ctx, args[1:])
	case "stats":
		return a.recordStats(ctx)
	case "del":
		return a.recordDelete(ctx, args[1:])
	default:
		return fmt.Errorf("未知的记账命令: %s", args[0])
	}
}

func (a *app) recordAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record add", flag.ExitOnError)
	recordType := fs.String("type", string(core.Expense), "类型 (income|expense)")
	amountStr := fs.String("amount", "", "金额")
	category := fs.String("category", "", "分类")
	remark := fs.String("remark", "", "备注")
	date := fs.String("date", core.Today(), "日期 (YYYY-MM-DD)")
	fs.Parse(args)

	amount, err := core.ParseAmount(*amountStr)
	if err != nil {
		return fmt.Errorf("金额无效: %w", err)
	}

	if a.cfg.DataBackend == "local" {
		ledger := a.localLedger()
		defer ledger.Close()
		record, err := ledger.CreateRecord(ctx, core.Transaction{
			Type:     core.RecordType(*recordType),
			Amount:   amount,
			Category: *category,
			Remark:   *remark,
			Date:     *date,
		})
		if err != nil {
			return err
		}
		fmt.Printf("已记账: %s %s %.2f (%s)\n", record.Date, record.Category, record.Amount, record.ID)
		return nil
	}

	record, err := a.accounting.AddRecord(ctx, api.CreateTransactionParams{
		Type:     core.RecordType(*recordType),
		Amount:   amount,
		Category: *category,
		Remark:   *remark,
		Date:     *date,
	})
	if err != nil {
		return err
	}
	fmt.Printf("已记账: %s %s %.2f (%s)\n", record.Date, record.Category, record.Amount, record.ID)
	return nil
}

func (a *app) recordList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record list", flag.ExitOnError)
	month := fs.String("month", "", "按月份筛选 (YYYY-MM)")
	recordType := fs.String("type", "", "按类型筛选 (income|expense)")
	fs.Parse(args)

	var records []core.Transaction
	if a.cfg.DataBackend == "local" {
		ledger := services.NewLedgerService(a.repo, nil, a.logger)
		var err error
		records, err = ledger.ListRecords(ctx, *month)
		if err != nil {
			return err
		}
	} else {
		filter := store.RecordFilter{Type: core.RecordType(*recordType)}
		if *month != "" {
			first := *month + "-01"
			filter.StartDate = core.MonthStart(first)
			filter.EndDate = core.MonthEnd(first)
		}
		for !a.accounting.End() {
			if err := a.accounting.LoadRecords(ctx, filter, false); err != nil {
				return err
			}
		}
		records = a.accounting.Records()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "日期\t类型\t分类\t金额\t备注\tID")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			record.Date, record.Type, record.Category, record.Amount, record.Remark, record.ID)
	}
	return w.Flush()
}

func (a *app) recordStats(ctx context.Context) error {
	var stats core.TransactionStatistics
	if a.cfg.DataBackend == "local" {
		ledger := services.NewLedgerService(a.repo, nil, a.logger)
		s, err := ledger.Statistics(ctx)
		if err != nil {
			return err
		}
		stats = *s
	} else {
		if err := a.accounting.LoadStatistics(ctx, api.StatisticsParams{}, true); err != nil {
			return err
		}
		stats = a.accounting.Statistics()
	}

	fmt.Printf("总收入: %.2f\n总支出: %.2f\n结余:   %.2f\n",
		stats.TotalIncome, stats.TotalExpense, stats.Balance)
	for _, ym := range sortedMonths(stats.MonthlySummary) {
		summary := stats.MonthlySummary[ym]
		fmt.Printf("  %s  收入 %.2f  支出 %.2f  结余 %.2f\n",
			ym, summary.Income, summary.Expense, summary.Balance)
	}
	return nil
}

func (a *app) recordDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger record del <id> [id...]")
	}
	if a.cfg.DataBackend == "local" {
		ledger := a.localLedger()
		defer ledger.Close()
		for _, id := range args {
			if err := ledger.DeleteRecord(ctx, id); err != nil {
				return err
			}
		}
		return nil
	}
	if len(args) == 1 {
		return a.accounting.DeleteRecord(ctx, args[0])
	}
	return a.accounting.BatchDeleteRecords(ctx, args)
}

func (a *app) runTask(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger task <add|list|done|del|quadrant> [参数]")
	}
	switch args[0] {
	case "add":
		return a.taskAdd(ctx, args[1:])
	case "list":
		return a.taskList(ctx, args[1:])
	case "done":
		return a.taskDone(ctx, args[1:])
	case "del":
		return a.taskDelete(ctx, args[1:])
	case "quadrant":
		return a.taskQuadrant(ctx)
	default:
		return fmt.Errorf("未知的任务命令: %s", args[0])
	}
}

func (a *app) taskAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("task add", flag.ExitOnError)
	title := fs.String("title", "", "标题")
	period := fs.String("period", string(core.PeriodNone), "时间范围 (week|month|year|none)")
	importance := fs.Int("importance", 0, "重要程度 (0-5)")
	urgency := fs.Int("urgency", 0, "紧急程度 (0-5)")
	dueDate := fs.String("due", "", "截止日期 (YYYY-MM-DD)")
	description := fs.String("desc", "", "描述")
	fs.Parse(args)

	task, err := a.todo.AddTask(ctx, api.CreateTaskParams{
		Title:       *title,
		TimePeriod:  core.TimePeriod(*period),
		Importance:  *importance,
		Urgency:     *urgency,
		DueDate:     *dueDate,
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Printf("已创建任务: %s (%s, %s)\n",
		task.Title, core.PriorityFor(task.Importance, task.Urgency), task.ID)
	return nil
}

func (a *app) taskList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	period := fs.String("period", "", "按时间范围筛选 (week|month|year)")
	fs.Parse(args)

	filter := api.TaskListParams{TimePeriod: core.TimePeriod(*period)}
	for !a.todo.End() {
		if err := a.todo.LoadTasks(ctx, filter, false); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "状态\t标题\t优先级\t截止\tID")
	for _, task := range a.todo.Tasks() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			task.Status, task.Title,
			core.PriorityFor(task.Importance, task.Urgency), task.DueDate, task.ID)
	}
	return w.Flush()
}

func (a *app) taskDone(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger task done <id>")
	}
	if err := a.loadAllTasks(ctx); err != nil {
		return err
	}
	task, err := a.todo.ToggleTaskStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("任务 %s 状态: %s\n", task.Title, task.Status)
	return nil
}

func (a *app) taskDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger task del <id> | ledger task del completed")
	}
	if args[0] == "completed" {
		if err := a.loadAllTasks(ctx); err != nil {
			return err
		}
		return a.todo.ClearCompletedTasks(ctx)
	}
	return a.todo.DeleteTask(ctx, args[0])
}

func (a *app) taskQuadrant(ctx context.Context) error {
	quadrants, err := a.todo.RefreshQuadrants(ctx)
	if err != nil {
		return err
	}
	printQuadrant := func(name string, tasks []core.Task) {
		fmt.Printf("%s (%d)\n", name, len(tasks))
		for _, task := range tasks {
			fmt.Printf("  - %s\n", task.Title)
		}
	}
	printQuadrant("重要且紧急", quadrants.First)
	printQuadrant("重要不紧急", quadrants.Second)
	printQuadrant("紧急不重要", quadrants.Third)
	printQuadrant("不重要不紧急", quadrants.Fourth)
	return nil
}

func (a *app) loadAllTasks(ctx context.Context) error {
	for !a.todo.End() {
		if err := a.todo.LoadTasks(ctx, api.TaskListParams{}, false); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runGoal(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger goal <add|list|save|progress> [参数]")
	}
	switch args[0] {
	case "add":
		return a.goalAdd(ctx, args[1:])
	case "list":
		return a.goalList(ctx)
	case "save":
		return a.goalSave(ctx, args[1:])
	case "progress":
		return a.goalProgress(ctx, args[1:])
	default:
		return fmt.Errorf("未知的目标命令: %s", args[0])
	}
}

func (a *app) goalAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal add", flag.ExitOnError)
	title := fs.String("title", "", "标题")
	targetStr := fs.String("target", "", "目标金额")
	period := fs.String("period", string(core.GoalMonthly), "周期 (month|quarter|half_year|year)")
	endDate := fs.String("end", "", "截止日期 (YYYY-MM-DD)")
	description := fs.String("desc", "", "描述")
	fs.Parse(args)

	target, err := core.ParseAmount(*targetStr)
	if err != nil {
		return fmt.Errorf("目标金额无效: %w", err)
	}

	goal, err := a.goals.AddGoal(ctx, api.CreateGoalParams{
		Title:        *title,
		TargetAmount: target,
		Description:  *description,
		Period:       core.GoalPeriod(*period),
		EndDate:      *endDate,
	})
	if err != nil {
		return err
	}
	fmt.Printf("已创建目标: %s 目标金额 %.2f (%s)\n", goal.Title, goal.TargetAmount, goal.ID)
	return nil
}

func (a *app) loadAllGoals(ctx context.Context) error {
	if err := a.goals.LoadGoals(ctx); err != nil {
		return err
	}
	for a.goals.HasMore() {
		if err := a.goals.LoadMoreGoals(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) goalList(ctx context.Context) error {
	if err := a.loadAllGoals(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "标题\t进度\t已存\t目标\t截止\tID")
	for _, goal := range a.goals.Goals() {
		fmt.Fprintf(w, "%s\t%.0f%%\t%.2f\t%.2f\t%s\t%s\n",
			goal.Title, goal.Progress, goal.CurrentAmount, goal.TargetAmount, goal.EndDate, goal.ID)
	}
	return w.Flush()
}

func (a *app) goalSave(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal save", flag.ExitOnError)
	id := fs.String("id", "", "目标 ID")
	amountStr := fs.String("amount", "", "存入金额")
	fs.Parse(args)

	amount, err := core.ParseAmount(*amountStr)
	if err != nil {
		return fmt.Errorf("金额无效: %w", err)
	}

	if err := a.loadAllGoals(ctx); err != nil {
		return err
	}
	goal, err := a.goals.AddToGoalAmount(ctx, *id, amount)
	if err != nil {
		return err
	}
	fmt.Printf("已存入 %.2f, 当前进度 %.0f%%\n", amount, goal.Progress())
	return nil
}

func (a *app) goalProgress(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: ledger goal progress <id>")
	}
	if err := a.loadAllGoals(ctx); err != nil {
		return err
	}
	details, err := a.goals.GoalProgressDetails(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("进度: %.1f%%\n剩余金额: %.2f\n剩余天数: %d\n",
		details.Progress, details.RemainingAmount, details.RemainingDays)
	if details.RemainingDays > 0 {
		fmt.Printf("每日需存: %.2f\n", details.DailyContributionNeeded)
	}
	return nil
}

func sortedMonths(summary map[string]core.MonthlySummary) []string {
	months := make([]string, 0, len(summary))
	for ym := range summary {
		months = append(months, ym)
	}
	// Newest first, same order the record list uses
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}
