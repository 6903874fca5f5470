package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ldi/cadence/internal/habits"
	"github.com/ldi/cadence/internal/recurrence"
	"github.com/ldi/cadence/internal/ui/components"
	"github.com/ldi/cadence/pkg/models"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// parseWeekdays reads a comma separated list of weekday names (mon) or
// indices (0 = Sunday).
func parseWeekdays(s string) (models.WeekdaySet, error) {
	var set models.WeekdaySet
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if len(part) > 3 {
			part = part[:3]
		}
		if d, ok := weekdayNames[part]; ok {
			set = set.With(d)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: unknown weekday %q", models.ErrInvalidInput, part)
		}
		set = set.With(time.Weekday(n))
	}
	return set, nil
}

func (a *app) runAddHabit(args []string) error {
	fs := flag.NewFlagSet("add-habit", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	kind := fs.String("type", "daily", "Recurrence (daily, weekly, monthly)")
	days := fs.String("days", "", "Weekdays for weekly habits, e.g. mon,wed,fri")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set, err := parseWeekdays(*days)
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	h := &models.Habit{
		UserID: a.cfg.User,
		Title:  joinArgs(fs.Args()),
		Rule:   models.RecurrenceRule{Type: models.RecurrenceType(*kind), Days: set},
	}
	if err := database.CreateHabit(ctx, h); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Created habit %s (%s)\n", h.Title, h.ID)
	return nil
}

func (a *app) runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	undo := fs.Bool("undo", false, "Remove the check instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: cadence check [--undo] <habit-id> [YYYY-MM-DD]")
	}

	date := recurrence.Key(a.now(), a.cfg.Location())
	if fs.NArg() > 1 {
		date = fs.Arg(1)
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if *undo {
		if err := database.UncheckHabit(ctx, fs.Arg(0), a.cfg.User, date); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Unchecked %s\n", date)
		return nil
	}
	if err := database.CheckHabit(ctx, fs.Arg(0), a.cfg.User, date); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Checked %s\n", date)
	return nil
}

func (a *app) runHabitStats(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: cadence habit-stats <habit-id>")
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	st, err := a.habitService(database).HabitStats(ctx, args[0], a.cfg.User)
	if err != nil {
		return err
	}
	h, err := database.GetHabit(ctx, args[0], a.cfg.User)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, components.NewHabitStatsView([]components.HabitRow{{Title: h.Title, Stats: *st}}, nil, 72).View())
	fmt.Fprintf(a.out, "\nAll time: %d/%d (%d%%)\n", st.Rates.Total.Checks, st.Rates.Total.Expected, st.Rates.Total.Rate)
	fmt.Fprintf(a.out, "Last 7d:  %d/%d (%d%%)\n", st.Rates.Weekly.Checks, st.Rates.Weekly.Expected, st.Rates.Weekly.Rate)
	fmt.Fprintf(a.out, "Month:    %d/%d (%d%%)\n", st.Rates.Monthly.Checks, st.Rates.Monthly.Expected, st.Rates.Monthly.Rate)
	return nil
}

func (a *app) runOverview(args []string) error {
	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := a.habitService(database).Overview(ctx, a.cfg.User)
	if err != nil {
		return err
	}
	hs, err := database.ListHabits(ctx, a.cfg.User)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, components.NewHabitStatsView(habitRows(hs, res.Habits), &res.Overview, 72).View())
	return nil
}

// habitRows pairs stats with habit titles. Overview keeps the habit order.
func habitRows(hs []*models.Habit, stats []habits.Stats) []components.HabitRow {
	titles := make(map[string]string, len(hs))
	for _, h := range hs {
		titles[h.ID] = h.Title
	}
	rows := make([]components.HabitRow, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, components.HabitRow{Title: titles[st.HabitID], Stats: st})
	}
	return rows
}
