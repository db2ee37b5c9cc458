package functions

import (
	"time"

	"github.com/grl-engine/grlrules/internal/value"
)

const isoDate = "2006-01-02"

func init() {
	register("DaysSince", daysSince)
	register("AddDays", addDays)
	register("FormatDate", formatDate)
	register("Now", now)
	register("Today", today)
}

// daysSince and today/now are the only non-pure built-ins (per §4.3
// table and §8 invariant 7, Now/Today are the named exceptions to
// function purity).
func daysSince(args []value.Value) (value.Value, error) {
	if err := requireArgs("DaysSince", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("DaysSince", args, 0)
	if err != nil {
		return value.Null(), err
	}
	d, err := time.Parse(isoDate, s)
	if err != nil {
		return value.Null(), argErr("DaysSince", 0, "invalid ISO-8601 date: %v", err)
	}
	nowUTC := time.Now().UTC()
	today := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(today.Sub(d).Hours() / 24)
	return value.Integer(days), nil
}

func addDays(args []value.Value) (value.Value, error) {
	if err := requireArgs("AddDays", args, 2); err != nil {
		return value.Null(), err
	}
	s, err := asString("AddDays", args, 0)
	if err != nil {
		return value.Null(), err
	}
	n, err := asInt("AddDays", args, 1)
	if err != nil {
		return value.Null(), err
	}
	d, err := time.Parse(isoDate, s)
	if err != nil {
		return value.Null(), argErr("AddDays", 0, "invalid ISO-8601 date: %v", err)
	}
	return value.String(d.AddDate(0, 0, int(n)).Format(isoDate)), nil
}

// formatDate accepts Go reference-time layouts rather than strftime
// directives, since this is a Go rewrite of a chrono-based original;
// callers porting GRL rule sources need to translate format strings.
func formatDate(args []value.Value) (value.Value, error) {
	if err := requireArgs("FormatDate", args, 2); err != nil {
		return value.Null(), err
	}
	s, err := asString("FormatDate", args, 0)
	if err != nil {
		return value.Null(), err
	}
	layout, err := asString("FormatDate", args, 1)
	if err != nil {
		return value.Null(), err
	}
	d, err := time.Parse(isoDate, s)
	if err != nil {
		return value.Null(), argErr("FormatDate", 0, "invalid ISO-8601 date: %v", err)
	}
	return value.String(d.Format(layout)), nil
}

func now(args []value.Value) (value.Value, error) {
	return value.String(time.Now().UTC().Format(time.RFC3339)), nil
}

func today(args []value.Value) (value.Value, error) {
	return value.String(time.Now().UTC().Format(isoDate)), nil
}
