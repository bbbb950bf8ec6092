// Package dashboard renders a go-echarts admin view of recent fall events,
// served alongside internal/store's admin debug routes.
package dashboard

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/httputil"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// EventSource supplies the data the dashboard renders.
type EventSource interface {
	RecentFallEvents(limit int) ([]falldetect.FallEvent, error)
}

// Dashboard attaches a /debug/fall-timeline chart to an admin mux.
type Dashboard struct {
	events EventSource
}

// New creates a Dashboard backed by events.
func New(events EventSource) *Dashboard {
	return &Dashboard{events: events}
}

// AttachRoutes mounts the dashboard's chart endpoint under the given mux's
// tsweb debug namespace.
func (d *Dashboard) AttachRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("fall-timeline", "Confirmed fall events, most recent 50", http.HandlerFunc(d.handleTimeline))
}

func (d *Dashboard) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := d.events.RecentFallEvents(50)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load fall events: %v", err))
		return
	}

	x := make([]string, 0, len(events))
	y := make([]opts.BarData, 0, len(events))
	// events arrive most-recent-first; reverse for a left-to-right timeline.
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		x = append(x, time.Unix(int64(ev.ConfirmedAt), 0).UTC().Format(time.RFC3339))
		y = append(y, opts.BarData{Value: ev.NotificationCount})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Confirmed Fall Events", Subtitle: fmt.Sprintf("count=%d", len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Confirmed At", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Notification Count"}),
	)
	bar.SetXAxis(x).AddSeries("notifications", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		monitoring.Logf("dashboard: failed writing timeline response: %v", err)
	}
}
