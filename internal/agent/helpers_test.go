package agent

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

const testDomain = "example.com"

// testConfigJSON LEADER заменяется адресом тестового сервера
const testConfigJSON = `{
	"leaderUrl": "LEADER",
	"helperUrl": "https://helper.example",
	"metrics": {
		"visit": {
			"aggregationConfig": {"taskId": "t-visit", "type": "count", "timePrecision": 3600, "vdafConfig": {}}
		},
		"engaged": {
			"aggregationConfig": {"taskId": "t-engaged", "type": "count", "timePrecision": 3600, "vdafConfig": {}}
		},
		"country": {
			"aggregationConfig": {"taskId": "t-country", "type": "histogram", "timePrecision": 3600,
				"vdafConfig": {"numBuckets": 250, "proofChunkSize": 16}},
			"metricsInfo": {"countryIndex": 42}
		},
		"os": {
			"aggregationConfig": {"taskId": "t-os", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 4, "proofChunkSize": 2}},
			"metricsInfo": {"labels": ["Windows", "MacOS", "Linux", "Other"]}
		},
		"browser": {
			"aggregationConfig": {"taskId": "t-browser", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 4, "proofChunkSize": 2}},
			"metricsInfo": {"labels": ["Chrome", "Firefox", "Safari", "Other"]}
		},
		"device": {
			"aggregationConfig": {"taskId": "t-device", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 3, "proofChunkSize": 1}},
			"metricsInfo": {"labels": ["Desktop", "Mobile", "Other"]}
		},
		"session": {
			"aggregationConfig": {"taskId": "t-session", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 5, "proofChunkSize": 2}},
			"metricsInfo": {"sessionInterval": 10}
		},
		"Sign up": {
			"aggregationConfig": {"taskId": "t-signup", "type": "count", "timePrecision": 60, "vdafConfig": {}}
		},
		"Rating": {
			"aggregationConfig": {"taskId": "t-rating", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 5, "proofChunkSize": 1}}
		}
	}
}`

func configDocument(leader string) []byte {
	return []byte(strings.Replace(testConfigJSON, "LEADER", leader, 1))
}

func mustConfig(t *testing.T) *model.GlobalConfig {
	t.Helper()
	gc, issues, err := model.DecodeGlobalConfig(configDocument("https://leader.example"))
	require.NoError(t, err)
	require.Empty(t, issues)
	return gc
}

// staticFetcher отдаёт заранее заданный результат и считает вызовы
type staticFetcher struct {
	cfg   *model.GlobalConfig
	err   error
	calls atomic.Int32
}

func (f *staticFetcher) Fetch(_ context.Context, _ string) (*model.GlobalConfig, error) {
	f.calls.Add(1)
	return f.cfg, f.err
}

type submission struct {
	Metric string
	Task   *model.Task
	Value  model.Measurement
}

// recordingSink запоминает отправки, err возвращается каждой из них
type recordingSink struct {
	mu   sync.Mutex
	subs []submission
	err  error
}

func (s *recordingSink) Submit(_ context.Context, task *model.Task, m model.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, submission{Metric: task.Metric, Task: task, Value: m})
	return s.err
}

func (s *recordingSink) all() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submission(nil), s.subs...)
}

func (s *recordingSink) values(metric string) []model.Measurement {
	var out []model.Measurement
	for _, sub := range s.all() {
		if sub.Metric == metric {
			out = append(out, sub.Value)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	agent    *Agent
	fetcher  *staticFetcher
	sink     *recordingSink
	session  *memory.FlagStore
	lifetime *memory.FlagStore
	clock    *fakeClock
}

func newTestEnv(t *testing.T, cfg *model.GlobalConfig, userAgent string) *testEnv {
	t.Helper()
	env := &testEnv{
		fetcher:  &staticFetcher{cfg: cfg},
		sink:     &recordingSink{},
		session:  memory.NewFlagStore(),
		lifetime: memory.NewFlagStore(),
		clock:    newFakeClock(),
	}

	a, err := NewAgent(Deps{
		Domain:        testDomain,
		Fetcher:       env.fetcher,
		Sink:          env.sink,
		SessionStore:  env.session,
		LifetimeStore: env.lifetime,
		UserAgent:     userAgent,
		Clock:         env.clock.Now,
	})
	require.NoError(t, err)
	env.agent = a
	return env
}

func intPtr(v int) *int { return &v }
