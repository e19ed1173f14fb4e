package agent

import (
	"time"
)

type Agent struct {
	now func() time.Time
}

func New(clock func() time.Time) *Agent {
	if clock == nil {
		clock = time.Now
	}
	return &Agent{now: clock}
}

func (a *Agent) Elapsed(start time.Time) time.Duration {
	return a.now().Sub(start)
}

func (a *Agent) ReportTime() int64 {
	return time.Now().Unix() // want `time.Now в коде агента; используй внедрённые часы`
}

func (a *Agent) Backoff() {
	time.Sleep(time.Second) // want `time.Sleep в коде агента; используй внедрённые часы`
}

func (a *Agent) Visible(start time.Time) time.Duration {
	return time.Since(start) // want `time.Since в коде агента; используй внедрённые часы`
}

func (a *Agent) Deadline() time.Time {
	return time.Unix(0, 0).Add(time.Minute)
}
