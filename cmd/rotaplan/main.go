package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rotaplan/internal/app"
	"rotaplan/internal/calendar"
	"rotaplan/internal/exception"
	"rotaplan/internal/rota"
	"rotaplan/internal/schedcache"
)

func main() {
	var (
		cfgPath  string
		month    string
		user     string
		cancelID int64
		addSpec  string
	)
	flag.StringVar(&cfgPath, "config", "./rotaplan.yaml", "path to config file (yaml or json)")
	flag.StringVar(&month, "month", "", "print one month (YYYY-MM) and exit")
	flag.StringVar(&user, "user", "", "narrow -month output to one user's schedule")
	flag.Int64Var(&cancelID, "cancel-exception", 0, "cancel an exception record by id and exit")
	flag.StringVar(&addSpec, "add-exception", "", "add an exception (user=..,date=..,kind=..,shift=..[,start=..,end=..,team=..,teams=..,note=..]) and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	code := 0
	switch {
	case addSpec != "":
		if id, err := addException(ctx, a, addSpec); err != nil {
			fmt.Println("add failed:", err)
			code = 1
		} else {
			fmt.Println("exception", id, "added")
		}
	case cancelID != 0:
		if err := a.Store().Cancel(ctx, cancelID); err != nil {
			fmt.Println("cancel failed:", err)
			code = 1
		} else {
			fmt.Println("exception", cancelID, "cancelled")
		}
	case month != "":
		if err := printMonth(ctx, a, month, user); err != nil {
			fmt.Println("error:", err)
			code = 1
		}
	default:
		<-ctx.Done()
	}

	_ = a.Stop(context.Background())
	os.Exit(code)
}

// addException parses a comma-separated key=value spec into a Record and
// writes it through the configured store.
func addException(ctx context.Context, a *app.App, spec string) (int64, error) {
	rec := exception.Record{Status: exception.StatusActive, CreatedAt: time.Now()}
	for _, pair := range strings.Split(spec, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return 0, fmt.Errorf("malformed field %q (want key=value)", pair)
		}
		var err error
		switch k {
		case "user":
			rec.UserID = v
		case "date":
			rec.Date, err = calendar.ParseDate(v)
		case "kind":
			rec.Kind, err = exception.ParseKind(v)
		case "shift":
			rec.ShiftTypeID = v
		case "start":
			rec.NewStart, err = rota.ParseMinuteOfDay(v)
			rec.HasNewTimes = true
		case "end":
			rec.NewEnd, err = rota.ParseMinuteOfDay(v)
			rec.HasNewTimes = true
		case "team":
			rec.SwapTeam = v
		case "teams":
			rec.Teams = strings.Split(v, "+")
		case "note":
			rec.Note = v
		default:
			err = fmt.Errorf("unknown field %q", k)
		}
		if err != nil {
			return 0, err
		}
	}
	if rec.UserID == "" || rec.Date.IsZero() || rec.Kind == 0 {
		return 0, fmt.Errorf("user, date and kind are required")
	}
	return a.Store().Put(ctx, rec)
}

func printMonth(ctx context.Context, a *app.App, monthStr, user string) error {
	m, err := calendar.ParseMonth(monthStr)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	days, err := a.Cache().Request(schedcache.BucketKey{Month: m, UserID: user}).Wait(wctx)
	if err != nil {
		return err
	}

	for _, d := range days {
		fmt.Println(formatDay(d))
	}
	return nil
}

func formatDay(d rota.ComputedDay) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", d.Date, d.Date.Weekday().String()[:3])
	if d.Degraded {
		b.WriteString(" [base-only]")
	}
	if len(d.Shifts) == 0 {
		b.WriteString("  off")
	}
	for _, s := range d.Shifts {
		fmt.Fprintf(&b, "  %s %s-%s %s", s.Type.ID, s.Type.Start, s.Type.End, strings.Join(s.Teams, ","))
	}
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "  (%s)", n)
	}
	return b.String()
}
