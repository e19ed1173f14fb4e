package agent

import (
	"strings"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/mssola/useragent"
)

// DefaultDeviceType если тип устройства не определён
const DefaultDeviceType = "Desktop"

// UserAgentClassifier разбирает user-agent через mssola/useragent
type UserAgentClassifier struct{}

func (UserAgentClassifier) Classify(userAgent string) model.Telemetry {
	if strings.TrimSpace(userAgent) == "" {
		return model.Telemetry{DeviceType: DefaultDeviceType}
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	device := DefaultDeviceType
	switch {
	case ua.Bot():
		device = "Bot"
	case ua.Mobile():
		device = "Mobile"
	}

	return model.Telemetry{
		BrowserName: browser,
		OSName:      normalizeOS(ua.OSInfo().Name),
		DeviceType:  device,
	}
}

// normalizeOS приводит имена к виду, привычному для списков меток
func normalizeOS(name string) string {
	switch {
	case strings.HasPrefix(name, "Mac OS X"), strings.HasPrefix(name, "macOS"):
		return "MacOS"
	case strings.HasPrefix(name, "iPhone OS"), strings.HasPrefix(name, "CPU OS"):
		return "iOS"
	}
	return name
}
