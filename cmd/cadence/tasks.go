package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/ldi/cadence/internal/db"
	"github.com/ldi/cadence/internal/ui/components"
	"github.com/ldi/cadence/pkg/models"
)

func (a *app) runAddGoal(args []string) error {
	fs := flag.NewFlagSet("add-goal", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	description := fs.String("description", "", "Goal description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	g := &models.Goal{UserID: a.cfg.User, Title: joinArgs(fs.Args()), Description: *description}
	if err := database.CreateGoal(ctx, g); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Created goal %s (%s)\n", g.Title, g.ID)
	return nil
}

func (a *app) runAddTask(args []string) error {
	fs := flag.NewFlagSet("add-task", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	priority := fs.String("priority", "mid", "Priority (high, mid, low)")
	goalID := fs.String("goal", "", "Goal id")
	due := fs.String("due", "", "Deadline: YYYY-MM-DD (all day), 'YYYY-MM-DD HH:MM' or RFC 3339")
	description := fs.String("description", "", "Task description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scheduled, allDay, err := models.ParseSchedule(*due, a.cfg.Location())
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	t := &models.Task{
		UserID:      a.cfg.User,
		GoalID:      *goalID,
		Title:       joinArgs(fs.Args()),
		Description: *description,
		Priority:    models.Priority(*priority),
		ScheduledAt: scheduled,
		AllDay:      allDay,
	}
	if err := database.CreateTask(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Created task %s (%s)\n", t.Title, t.ID)
	return nil
}

func (a *app) runListTasks(args []string) error {
	fs := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	statusFilter := fs.String("status", "", "Filter by status")
	goalFilter := fs.String("goal", "", "Filter by goal id")
	all := fs.Bool("all", false, "Include completed and archived tasks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := db.TaskFilter{GoalID: *goalFilter, OpenOnly: !*all && *statusFilter == ""}
	if *statusFilter != "" {
		s := models.TaskStatus(*statusFilter)
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", *statusFilter)
		}
		f.Status = &s
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	tasks, err := database.ListTasks(ctx, a.cfg.User, f)
	if err != nil {
		return err
	}

	loc := a.cfg.Location()
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRIORITY\tSTATUS\tDUE")
	for _, t := range tasks {
		due := "-"
		if t.ScheduledAt != nil {
			if t.AllDay {
				due = t.ScheduledAt.In(loc).Format("2006-01-02")
			} else {
				due = t.ScheduledAt.In(loc).Format("2006-01-02 15:04")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Priority, t.Status, due)
	}
	return w.Flush()
}

func (a *app) runRecommend(args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	why := fs.Bool("why", false, "Show the factor breakdown of every candidate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	ids := fs.Args()
	if len(ids) == 0 {
		open, err := database.ListTasks(ctx, a.cfg.User, db.TaskFilter{OpenOnly: true})
		if err != nil {
			return err
		}
		for _, t := range open {
			ids = append(ids, t.ID)
		}
		if len(ids) < 2 {
			fmt.Fprintln(a.out, "Need at least two open tasks to compare.")
			return nil
		}
	}

	d, err := a.engine(database).RecommendNext(ctx, ids, a.cfg.User)
	if err != nil {
		return err
	}

	titles := make(map[string]string)
	if d != nil {
		candidates, err := database.GetTasksByIDs(ctx, a.cfg.User, ids)
		if err != nil {
			return err
		}
		for _, t := range candidates {
			titles[t.ID] = t.Title
		}
	}

	v := components.NewDecisionView(d, titles, 72)
	v.Breakdown = *why
	fmt.Fprintln(a.out, v.View())
	return nil
}

func (a *app) runFeedback(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cadence feedback <log-id> <task-id> [note]")
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	var note *string
	if n := joinArgs(args[2:]); n != "" {
		note = &n
	}
	if err := a.engine(database).SaveUserFeedback(ctx, args[0], a.cfg.User, args[1], note); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ Feedback recorded")
	return nil
}

func (a *app) runStatus(args []string) error {
	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	goals, err := database.ListGoals(ctx, a.cfg.User, false)
	if err != nil {
		return err
	}
	tasks, err := database.ListTasks(ctx, a.cfg.User, db.TaskFilter{})
	if err != nil {
		return err
	}
	hs, err := database.ListHabits(ctx, a.cfg.User)
	if err != nil {
		return err
	}
	summary, err := a.engine(database).FeedbackSummary(ctx, a.cfg.User)
	if err != nil {
		return err
	}

	statusCounts := make(map[models.TaskStatus]int)
	for _, t := range tasks {
		statusCounts[t.Status]++
	}

	fmt.Fprintf(a.out, "Cadence Status (%s)\n", a.cfg.User)
	fmt.Fprintln(a.out, "==============")
	fmt.Fprintf(a.out, "Goals:       %d\n", len(goals))
	fmt.Fprintf(a.out, "Tasks:       %d\n", len(tasks))
	fmt.Fprintf(a.out, "Habits:      %d\n", len(hs))

	fmt.Fprintln(a.out, "\nTask Breakdown:")
	fmt.Fprintf(a.out, "  Todo:        %d\n", statusCounts[models.TaskStatusTodo])
	fmt.Fprintf(a.out, "  In Progress: %d\n", statusCounts[models.TaskStatusInProgress])
	fmt.Fprintf(a.out, "  Completed:   %d\n", statusCounts[models.TaskStatusCompleted])
	fmt.Fprintf(a.out, "  Archived:    %d\n", statusCounts[models.TaskStatusArchivedCompleted]+statusCounts[models.TaskStatusArchivedCancelled])

	fmt.Fprintln(a.out, "\nRecommendations:")
	fmt.Fprintf(a.out, "  Decisions:     %d\n", summary.Decisions)
	fmt.Fprintf(a.out, "  With feedback: %d\n", summary.WithFeedback)
	fmt.Fprintf(a.out, "  Accepted:      %d (%.0f%%)\n", summary.Accepted, summary.AcceptanceRate*100)
	return nil
}
