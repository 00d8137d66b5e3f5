package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/scheduler"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// parseAssignments turns key=value words into a field map. Values that are
// valid JSON (numbers, booleans, null, quoted strings) keep their type;
// anything else is taken as a plain string.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		fields[k] = parseValue(v)
	}
	return fields, nil
}

func parseValue(s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("add <collection> key=value...")
	}
	fields, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	rec, err := a.records.Add(ctx, args[0], fields)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("added %s/%s", rec.Collection, rec.ID))
	return nil
}

func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("update <collection> <id> key=value...")
	}
	fields, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}
	rec, err := a.records.Update(ctx, args[0], args[1], fields)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("updated %s/%s (revision %d)", rec.Collection, rec.ID, rec.Revision))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("delete <collection> <id>")
	}
	if err := a.records.Delete(ctx, args[0], args[1]); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("deleted %s/%s", args[0], args[1]))
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("list <collection>")
	}
	recs, err := a.records.List(ctx, args[0])
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		printlnFn("(no records)")
		return nil
	}
	for _, r := range recs {
		mark := "pending"
		if r.Synced {
			mark = "synced"
		}
		fields, _ := json.Marshal(r.Fields)
		printlnFn(fmt.Sprintf("%s  %-7s  %s  %s", r.ID, mark, r.UpdatedAt.Format(time.RFC3339), fields))
	}
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	counts, err := a.records.Pending(ctx)
	if err != nil {
		return err
	}
	for _, c := range counts {
		printlnFn(fmt.Sprintf("%-12s %d", c.Collection, c.Unsynced))
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if !a.scheduler.OfflineMode() {
		printlnFn("sync is disabled, enable it with 'offline on'")
		return nil
	}
	rep, ok := a.scheduler.RunNow(ctx, scheduler.TriggerManual)
	if !ok {
		printlnFn("a sync pass is already running")
		return nil
	}
	attempted, succeeded, failed := rep.Totals()
	printlnFn(fmt.Sprintf("sync finished: %d attempted, %d synced, %d failed, %d still pending",
		attempted, succeeded, failed, rep.Remaining))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	s := a.projection.Snapshot()
	state := "idle"
	if s.Syncing {
		state = "syncing"
	}
	last := "never"
	if s.LastSyncAt != nil {
		last = s.LastSyncAt.Local().Format(time.RFC3339)
	}
	printlnFn(fmt.Sprintf("%s, progress %d%%, %d pending, last sync %s, %s",
		state, s.Progress, a.engine.Pending(ctx), last, a.prompt()))
	return nil
}

func (a *App) SetOffline(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("offline on|off")
	}
	switch args[0] {
	case "on":
		a.scheduler.SetOfflineMode(true)
	case "off":
		a.scheduler.SetOfflineMode(false)
	default:
		return usage("offline on|off")
	}
	printlnFn("background sync", args[0])
	return nil
}
