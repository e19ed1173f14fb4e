package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
)

// EventClassPrefix класс разметки для пользовательских событий: tinfoil-event-name=Sign+up
const EventClassPrefix = "tinfoil-event-name="

type SignalKind int

const (
	SignalVisibility SignalKind = iota
	SignalInteraction
	SignalFormSubmit
	SignalCustom
	SignalUnload
)

// типы взаимодействий, на которые срабатывает engaged
const (
	InteractionClick    = "click"
	InteractionKeyPress = "keypress"
)

// Signal событие страницы хоста
type Signal struct {
	Kind SignalKind

	Visible bool // SignalVisibility

	Interaction string // SignalInteraction
	// классы элемента-цели и его предков (до body), начиная с цели.
	// Для SignalFormSubmit - только классы формы.
	Path [][]string

	Name  string // SignalCustom
	Value any
}

func Visibility(visible bool) Signal {
	return Signal{Kind: SignalVisibility, Visible: visible}
}

func Click(path ...[]string) Signal {
	return Signal{Kind: SignalInteraction, Interaction: InteractionClick, Path: path}
}

func KeyPress() Signal {
	return Signal{Kind: SignalInteraction, Interaction: InteractionKeyPress}
}

func FormSubmit(classes []string) Signal {
	return Signal{Kind: SignalFormSubmit, Path: [][]string{classes}}
}

func Custom(name string, value any) Signal {
	return Signal{Kind: SignalCustom, Name: name, Value: value}
}

func Unload() Signal {
	return Signal{Kind: SignalUnload}
}

// Run обрабатывает события страницы до закрытия канала, unload или отмены ctx.
// Отправки идут в фоне и не упорядочены между собой; перед выходом Run их дожидается.
func (a *Agent) Run(ctx context.Context, signals <-chan Signal) error {
	defer a.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if !a.Handle(ctx, sig) {
				return nil
			}
		}
	}
}

// Handle один сигнал; false после unload
func (a *Agent) Handle(ctx context.Context, sig Signal) bool {
	switch sig.Kind {
	case SignalVisibility:
		a.onVisibility(ctx, sig.Visible)

	case SignalInteraction:
		a.onInteraction(ctx, sig.Interaction)
		if sig.Interaction == InteractionClick {
			if name, ok := ResolveEventName(sig.Path); ok {
				a.spawn("customEvent", func() { a.TrackEvent(ctx, name) })
			}
		}

	case SignalFormSubmit:
		if len(sig.Path) > 0 {
			if name, ok := EventNameFromClasses(sig.Path[0]); ok {
				a.spawn("customEvent", func() { a.TrackEvent(ctx, name) })
			}
		}

	case SignalCustom:
		a.spawn("customEvent", func() { a.TrackEvent(ctx, sig.Name, sig.Value) })

	case SignalUnload:
		a.endVisibilityCycle(ctx)
		return false

	default:
		a.log.Debugf("Unknown signal kind %d", sig.Kind)
	}
	return true
}

// engagementListener снимается после первого взаимодействия
type engagementListener struct {
	once sync.Once
}

func (a *Agent) onInteraction(ctx context.Context, kind string) {
	if kind != InteractionClick && kind != InteractionKeyPress {
		return
	}
	a.engagement.once.Do(func() {
		a.log.Debug("User interaction detected")
		a.spawn("trackEngagement", func() { a.TrackEngagement(ctx) })
	})
}

// TrackEngagement engaged не чаще раза за сессию
func (a *Agent) TrackEngagement(ctx context.Context) {
	gc, ok := a.config(ctx)
	if !ok || gc.Metric(model.MetricEngaged) == nil {
		return
	}
	if !a.claim(ctx, a.session, FlagEngaged) {
		return
	}
	a.Track(ctx, model.MetricEngaged, model.BoolMeasurement(true))
}

// EventNameFromClasses имя события из класса разметки, '+' заменяется пробелом
func EventNameFromClasses(classes []string) (string, bool) {
	for _, class := range classes {
		if !strings.HasPrefix(class, EventClassPrefix) {
			continue
		}
		parts := strings.Split(class, "=")
		if len(parts) < 2 || parts[1] == "" {
			return "", false
		}
		return strings.ReplaceAll(parts[1], "+", " "), true
	}
	return "", false
}

// ResolveEventName ищет класс события от цели клика вверх по предкам
func ResolveEventName(path [][]string) (string, bool) {
	for _, classes := range path {
		for _, class := range classes {
			if strings.HasPrefix(class, EventClassPrefix) {
				return EventNameFromClasses(classes)
			}
		}
	}
	return "", false
}
