package agent

import (
	"context"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"golang.org/x/sync/errgroup"
)

// ключи флагов дедупликации
const (
	FlagPageVisit   = "page-visit"
	FlagCountry     = "submit-country"
	FlagOSType      = "submit-os-type"
	FlagBrowserType = "submit-browser-type"
	FlagDeviceType  = "submit-device-type"
	FlagEngaged     = "engaged"
	// lifetime scope
	FlagUniqueVisit = "unique-visit"
)

// TrackPageVisit один раз за сессию отправляет visit:
// true для первого визита с устройства, false для повторного.
func (a *Agent) TrackPageVisit(ctx context.Context) error {
	gc, ok := a.config(ctx)
	if !ok || gc.Metric(model.MetricVisit) == nil {
		return nil
	}
	if !a.claim(ctx, a.session, FlagPageVisit) {
		return nil
	}
	a.log.Debug("Tracking page visit")

	unique, err := a.lifetime.Claim(ctx, FlagUniqueVisit)
	if err != nil {
		// визит всё равно отправляем, считаем повторным
		a.log.Warnf("Cannot read %s flag: %v", FlagUniqueVisit, err)
		unique = false
	}
	if unique {
		a.log.Debug("New unique visitor")
	} else {
		a.log.Debug("Returning visitor")
	}

	a.Track(ctx, model.MetricVisit, model.BoolMeasurement(unique))
	return nil
}

// TrackCountry отправляет countryIndex из конфигурации как есть
func (a *Agent) TrackCountry(ctx context.Context) error {
	gc, ok := a.config(ctx)
	if !ok {
		return nil
	}
	mc := gc.Metric(model.MetricCountry)
	if mc == nil {
		return nil
	}
	info, ok := mc.Info.(model.CountryInfo)
	if !ok {
		return nil
	}
	if !a.claim(ctx, a.session, FlagCountry) {
		return nil
	}
	a.log.Debug("Tracking country")

	a.Track(ctx, model.MetricCountry, model.IndexMeasurement(info.CountryIndex))
	return nil
}

// TrackTelemetry классифицирует user-agent и параллельно отправляет os, browser, device.
func (a *Agent) TrackTelemetry(ctx context.Context) error {
	if _, ok := a.config(ctx); !ok {
		return nil
	}

	telemetry := a.classifier.Classify(a.userAgent)

	var g errgroup.Group
	g.Go(func() error {
		defer a.recoverPolicy("sendBrowserType")
		a.trackLabel(ctx, model.MetricBrowser, FlagBrowserType, telemetry.BrowserName)
		return nil
	})
	g.Go(func() error {
		defer a.recoverPolicy("sendOSType")
		a.trackLabel(ctx, model.MetricOS, FlagOSType, telemetry.OSName)
		return nil
	})
	g.Go(func() error {
		defer a.recoverPolicy("sendDeviceType")
		a.trackLabel(ctx, model.MetricDevice, FlagDeviceType, telemetry.DeviceType)
		return nil
	})
	return g.Wait()
}

// trackLabel флаг ставится только после успешной классификации,
// пустой сигнал не блокирует метрику на всю сессию.
func (a *Agent) trackLabel(ctx context.Context, metric, flag, observed string) {
	gc, ok := a.config(ctx)
	if !ok {
		return
	}
	mc := gc.Metric(metric)
	if mc == nil {
		return
	}
	labels := mc.Labels()
	if len(labels) == 0 {
		return
	}
	if observed == "" {
		a.log.Debugf("%s type is undefined", metric)
		return
	}
	if !a.claim(ctx, a.session, flag) {
		return
	}

	idx := LabelIndex(labels, observed)
	a.log.Debugf("%s type is %s", metric, labels[idx])
	a.Track(ctx, metric, model.IndexMeasurement(idx))
}
