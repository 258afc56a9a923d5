package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"fitbit-insights/internal/health"
	"fitbit-insights/internal/service"
)

// errHelp is returned when the user asked for a command's flag help
var errHelp = flag.ErrHelp

// options are the parsed flags of one command
type options struct {
	days       int
	daysSet    bool
	configPath string
	json       bool

	// report
	reportType  string
	interactive bool

	// alerts threshold overrides, only for flags actually given
	overrides map[health.Metric]float64
}

func parseFlags(name string, args []string, stderr io.Writer) (options, error) {
	opts := options{overrides: make(map[health.Metric]float64)}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.days, "days", service.DefaultDays, "number of days before today to include")
	fs.StringVar(&opts.configPath, "config", "", "config file path")
	fs.BoolVar(&opts.json, "json", false, "print JSON")

	var steps, sleep, restingHR float64
	switch name {
	case "report":
		fs.StringVar(&opts.reportType, "type", string(service.ReportWeekly), "report type: daily, weekly or monthly")
		fs.BoolVar(&opts.interactive, "interactive", false, "open the report in a pager")
	case "alerts":
		fs.Float64Var(&steps, "steps", 0, "minimum daily steps")
		fs.Float64Var(&sleep, "sleep", 0, "minimum nightly sleep in hours")
		fs.Float64Var(&restingHR, "resting-hr", 0, "maximum resting heart rate")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, errHelp
		}
		return opts, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "days":
			opts.daysSet = true
		case "steps":
			opts.overrides[health.MetricSteps] = steps
		case "sleep":
			opts.overrides[health.MetricSleepHours] = sleep
		case "resting-hr":
			opts.overrides[health.MetricRestingHeartRate] = restingHR
		}
	})

	return opts, nil
}
