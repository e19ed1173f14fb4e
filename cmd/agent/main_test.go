package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/agent"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/config"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/file"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name string
		line string
		want agent.Signal
	}{
		{name: "visible", line: "visible", want: agent.Visibility(true)},
		{name: "hidden", line: "hidden", want: agent.Visibility(false)},
		{name: "keypress", line: "keypress", want: agent.KeyPress()},
		{name: "unload", line: "unload", want: agent.Unload()},
		{name: "клик без классов", line: "click", want: agent.Click()},
		{
			name: "клик с предками",
			line: "click icon | btn tinfoil-event-name=Sign+up | body",
			want: agent.Click([]string{"icon"}, []string{"btn", "tinfoil-event-name=Sign+up"}, []string{"body"}),
		},
		{name: "отправка формы", line: "submit form tinfoil-event-name=Subscribe", want: agent.FormSubmit([]string{"form", "tinfoil-event-name=Subscribe"})},
		{name: "событие без значения", line: "event Sign up", want: agent.Custom("Sign up", nil)},
		{name: "событие с индексом", line: "event Rating=3", want: agent.Custom("Rating", 3)},
		{name: "единица это индекс", line: "event Rating=1", want: agent.Custom("Rating", 1)},
		{name: "событие с bool", line: "event Liked=false", want: agent.Custom("Liked", false)},
		{name: "строковое значение", line: "event Plan=pro", want: agent.Custom("Plan", "pro")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSignal(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("ошибки", func(t *testing.T) {
		_, err := parseSignal("scroll")
		assert.Error(t, err)
		_, err = parseSignal("event")
		assert.Error(t, err)
	})
}

func TestReadSignals(t *testing.T) {
	input := "visible\n\n# комментарий\nbogus\nclick btn\nunload\n"
	out := make(chan agent.Signal)
	go readSignals(context.Background(), strings.NewReader(input), out, zap.NewNop().Sugar())

	var got []agent.Signal
	for sig := range out {
		got = append(got, sig)
	}
	assert.Equal(t, []agent.Signal{agent.Visibility(true), agent.Click([]string{"btn"}), agent.Unload()}, got)
}

func TestBuildLifetimeStore(t *testing.T) {
	log := zap.NewNop().Sugar()

	t.Run("memory", func(t *testing.T) {
		store, closeStore, err := buildLifetimeStore(context.Background(), &config.Options{LifetimeStore: config.StoreMemory, Domain: "a.com"}, log)
		require.NoError(t, err)
		defer closeStore()
		assert.IsType(t, &memory.FlagStore{}, store)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		store, closeStore, err := buildLifetimeStore(context.Background(), &config.Options{LifetimeStore: config.StoreFile, StateFile: path}, log)
		require.NoError(t, err)
		defer closeStore()
		assert.IsType(t, &file.FlagStore{}, store)
	})
}

func TestBuildSink(t *testing.T) {
	log := zap.NewNop().Sugar()

	t.Run("log", func(t *testing.T) {
		sink, err := buildSink(&config.Options{SinkMode: config.SinkLog}, log)
		require.NoError(t, err)
		assert.IsType(t, agent.LogSink{}, sink)
	})

	t.Run("http", func(t *testing.T) {
		sink, err := buildSink(&config.Options{SinkMode: config.SinkHTTP, HashKey: "k"}, log)
		require.NoError(t, err)
		assert.IsType(t, &agent.HTTPSink{}, sink)
	})

	t.Run("нет файла ключа", func(t *testing.T) {
		_, err := buildSink(&config.Options{SinkMode: config.SinkHTTP, CryptoKey: filepath.Join(t.TempDir(), "missing.pem")}, log)
		assert.Error(t, err)
	})
}

const runConfig = `{
	"leaderUrl": "http://leader.invalid",
	"helperUrl": "http://helper.invalid",
	"metrics": {
		"visit": {"aggregationConfig": {"taskId": "t-visit", "type": "count", "timePrecision": 3600, "vdafConfig": {}}},
		"engaged": {"aggregationConfig": {"taskId": "t-engaged", "type": "count", "timePrecision": 3600, "vdafConfig": {}}}
	}
}`

func TestRun(t *testing.T) {
	// пустая переменная для cleanenv не то же что отсутствующая
	for _, env := range []string{
		"DOMAIN", "CONFIG_ENDPOINT", "DEBUG", "USER_AGENT", "SINK", "CRYPTO_KEY", "KEY",
		"LIFETIME_STORE", "STATE_FILE", "DATABASE_DSN", "METRICS_ADDR", "CONFIG",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/domains/example.com/config", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(runConfig))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("сессия до unload", func(t *testing.T) {
		args := []string{"-domain", "example.com", "-e", server.URL, "-sink", "log", "-store", "memory"}
		err := run(ctx, args, strings.NewReader("visible\nclick btn\nhidden\nunload\n"))
		require.NoError(t, err)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("конфиг недоступен", func(t *testing.T) {
		args := []string{"-domain", "example.com", "-e", "http://127.0.0.1:1", "-sink", "log", "-store", "memory"}
		err := run(ctx, args, strings.NewReader("visible\nkeypress\nunload\n"))
		require.NoError(t, err)
	})

	t.Run("неверные настройки", func(t *testing.T) {
		err := run(ctx, []string{"-sink", "log"}, strings.NewReader(""))
		assert.ErrorIs(t, err, config.ErrInvalidOptions)
	})
}

func TestRun_HungLeader(t *testing.T) {
	for _, env := range []string{
		"DOMAIN", "CONFIG_ENDPOINT", "DEBUG", "USER_AGENT", "SINK", "CRYPTO_KEY", "KEY",
		"LIFETIME_STORE", "STATE_FILE", "DATABASE_DSN", "METRICS_ADDR", "CONFIG",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	var visits, engaged atomic.Int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/domains/example.com/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		doc := strings.Replace(runConfig, "http://leader.invalid", server.URL, 1)
		w.Write([]byte(doc))
	})
	// лидер принимает отчёт visit и не отвечает
	mux.HandleFunc("/tasks/t-visit/reports", func(w http.ResponseWriter, r *http.Request) {
		visits.Add(1)
		<-r.Context().Done()
	})
	mux.HandleFunc("/tasks/t-engaged/reports", func(w http.ResponseWriter, r *http.Request) {
		engaged.Add(1)
		w.WriteHeader(http.StatusCreated)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	args := []string{"-domain", "example.com", "-e", server.URL, "-sink", "http", "-store", "memory"}
	err := run(ctx, args, strings.NewReader("keypress\n"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), visits.Load())
	assert.Equal(t, int32(1), engaged.Load(), "engaged отправлен пока visit висит")
}
