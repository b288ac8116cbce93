// Package stats periodically logs connection pool and event loop saturation.
package stats

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Source produces one set of log fields per report.
type Source func() logrus.Fields

type Reporter struct {
	cron    *cron.Cron
	logger  *logrus.Logger
	sources map[string]Source
}

func NewReporter(logger *logrus.Logger) *Reporter {
	return &Reporter{
		cron:    cron.New(),
		logger:  logger,
		sources: make(map[string]Source),
	}
}

// Add registers a named source. Its fields are prefixed with name.
func (r *Reporter) Add(name string, src Source) {
	r.sources[name] = src
}

// Start schedules the report. An empty schedule disables reporting.
func (r *Reporter) Start(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return fmt.Errorf("schedule stats report %q: %w", schedule, err)
	}
	r.cron.Start()
	return nil
}

func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

// Report logs a single line combining every source.
func (r *Reporter) Report() {
	fields := logrus.Fields{}
	for name, src := range r.sources {
		for k, v := range src() {
			fields[name+"_"+k] = v
		}
	}
	r.logger.WithFields(fields).Info("stats")
}
