// Command fallwatch runs the real-time fall-detection core: it reads
// frames from a configured source, classifies each against the rule
// engine, debounces through the state machine, and fans confirmed/
// suspected events out to the event store, push notifier, siren relay,
// and skeleton collector.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/fallwatch/internal/config"
	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/falldetect/buffer"
	"github.com/banshee-data/fallwatch/internal/falldetect/collector"
	"github.com/banshee-data/fallwatch/internal/falldetect/dashboard"
	"github.com/banshee-data/fallwatch/internal/falldetect/notify"
	"github.com/banshee-data/fallwatch/internal/falldetect/orchestrator"
	"github.com/banshee-data/fallwatch/internal/falldetect/rule"
	"github.com/banshee-data/fallwatch/internal/falldetect/smoother"
	"github.com/banshee-data/fallwatch/internal/falldetect/statemachine"
	"github.com/banshee-data/fallwatch/internal/httputil"
	"github.com/banshee-data/fallwatch/internal/serialmux"
	"github.com/banshee-data/fallwatch/internal/store"
	"github.com/banshee-data/fallwatch/internal/version"
)

var (
	configFile    = flag.String("config", config.DefaultConfigPath, "Path to JSON fall-detection configuration file")
	listen        = flag.String("listen", ":8090", "HTTP listen address for the admin/debug surface")
	frameDir      = flag.String("frame-dir", "", "Directory of JPEG/PNG frames to replay (camera ingestion is external; this is a local substitute)")
	disableSerial = flag.Bool("disable-siren", false, "Disable the serial siren relay (serve everything else without the panel attached)")
	sirenPort     = flag.String("siren-port", "/dev/ttyUSB0", "Serial port for the alarm-panel siren relay")
	versionFlag   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("fallwatch v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("fallwatch v%s (git SHA: %s) starting", version.Version, version.GitSHA)

	cfg, err := config.LoadFallConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := store.Open(cfg.GetSQLitePath())
	if err != nil {
		log.Fatalf("failed to open event store: %v", err)
	}
	defer db.Close()

	fps := 15.0
	ring := buffer.NewRing(cfg.GetBufferSeconds(), fps)

	var ruleEngine orchestrator.RuleEngine
	if cfg.GetUsePose() {
		poseRule := rule.NewPoseRule()
		poseRule.Threshold = cfg.GetAngleThresholdDeg()
		if cfg.GetEnableSmoothing() {
			smootherCfg := smoother.DefaultConfig()
			smootherCfg.MinCutoff = cfg.GetSmoothingMinCutoff()
			smootherCfg.Beta = cfg.GetSmoothingBeta()
			poseRule.Smoother = smoother.New(smootherCfg)
		}
		ruleEngine = poseRule
	} else {
		bboxRule := rule.NewBBoxRule()
		bboxRule.Threshold = cfg.GetFallThresholdAspect()
		ruleEngine = bboxRule
	}

	params := statemachine.DefaultParams()
	params.DelaySec = cfg.GetDelaySec()
	params.SameEventWindow = cfg.GetSameEventWindow()
	params.ReNotifyInterval = cfg.GetReNotifyInterval()
	machine := statemachine.New(params)

	eventLogger := store.NewEventLogger(db)
	machine.RegisterFallObserver(eventLogger)
	machine.RegisterSuspectedObserver(eventLogger)

	clipWriter := falldetect.NewManifestClipWriter(cfg.GetSkeletonOutputDir())
	orch := orchestrator.New(falldetect.NullDetector{}, ruleEngine, ring, machine, clipWriter, nil, orchestrator.Config{
		ClipBeforeSec: cfg.GetClipBeforeSec(),
		ClipAfterSec:  cfg.GetClipAfterSec(),
	})
	machine.RegisterFallObserver(orch)

	if cfg.GetAutoSkeletonExtract() {
		coll := collector.New(ring, falldetect.NullPoseDetector{}, collector.Config{
			BeforeSec:  cfg.GetClipBeforeSec(),
			AfterSec:   cfg.GetClipAfterSec(),
			Workers:    2,
			OutputDir:  cfg.GetSkeletonOutputDir(),
			SourceName: "fallwatch",
			FPS:        fps,
		})
		machine.RegisterSuspectedObserver(coll)
		defer coll.Shutdown()
	}

	if cfg.GetPushEnabled() && cfg.GetPushWebhookURL() != "" {
		pusher := notify.NewPushNotifier(httputil.NewStandardClient(nil), cfg.GetPushWebhookURL())
		machine.RegisterFallObserver(pusher)
	}

	var sirenMux serialmux.SerialMuxInterface
	if cfg.GetSirenEnabled() && !*disableSerial {
		port := cfg.GetSirenSerialPort()
		if port == "" {
			port = *sirenPort
		}
		realMux, err := serialmux.NewRealSerialMux(port, serialmux.PortOptions{})
		if err != nil {
			log.Printf("failed to open siren serial port %s, running without siren: %v", port, err)
			sirenMux = serialmux.NewDisabledSerialMux()
		} else {
			if err := realMux.Initialize(); err != nil {
				log.Printf("failed to initialize siren relay: %v", err)
			}
			sirenMux = realMux
		}
	} else {
		sirenMux = serialmux.NewDisabledSerialMux()
	}
	if cfg.GetSirenEnabled() {
		machine.RegisterFallObserver(notify.NewSirenRelay(sirenMux))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)
	dashboard.New(db).AttachRoutes(mux)
	sirenMux.AttachAdminRoutes(mux)

	wg.Add(1)
	go func() {
		defer wg.Done()
		server := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		log.Printf("admin HTTP server listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin HTTP server error: %v", err)
		}
	}()

	if *frameDir != "" {
		source := falldetect.NewDirectoryFrameSource(*frameDir, fps)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Run(ctx, orch.Step); err != nil && err != context.Canceled {
				log.Printf("frame source error: %v", err)
			}
			log.Printf("frame source exhausted")
		}()
	} else {
		log.Printf("no -frame-dir configured; running admin surface only until shutdown")
	}

	<-ctx.Done()
	log.Printf("shutdown signal received, draining")
	orch.Shutdown()
	wg.Wait()
	log.Printf("graceful shutdown complete")
}
