package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/speedwatch/speedwatch/internal/alert"
	"github.com/speedwatch/speedwatch/internal/app"
	"github.com/speedwatch/speedwatch/internal/capture"
	"github.com/speedwatch/speedwatch/internal/detector"
	"github.com/speedwatch/speedwatch/internal/server"
	"github.com/speedwatch/speedwatch/internal/speed"
	"github.com/speedwatch/speedwatch/internal/store"
	"github.com/speedwatch/speedwatch/internal/tracker"
)

func main() {
	var (
		source    = flag.String("source", "0", "video source: camera index or file path")
		limit     = flag.Float64("limit", speed.DefaultSpeedLimit, "speed limit in km/h")
		calibrate = flag.Float64("calibrate", speed.DefaultPixelsPerMeter, "calibration in pixels per meter")
		addr      = flag.String("addr", ":8080", "HTTP listen address")
		dbPath    = flag.String("db", "", "sqlite database path (default ~/.speedwatch/speedwatch.db)")
		model     = flag.String("model", "", "ONNX model path (default yolov8n.onnx)")
		snapshots = flag.String("snapshots", "", "directory for overspeed snapshots (disabled if empty)")
		hooksDir  = flag.String("hooks", "", "directory of alert hooks (disabled if empty)")
	)
	flag.Parse()

	fmt.Println("Speedwatch - Vehicle Speed Monitoring")

	st, err := openStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	if *snapshots != "" {
		if err := os.MkdirAll(*snapshots, 0755); err != nil {
			log.Fatalf("Failed to create snapshot directory: %v", err)
		}
	}

	speedCfg := speed.DefaultConfig()
	speedCfg.SpeedLimit = *limit
	speedCfg.PixelsPerMeter = *calibrate

	a := app.New(app.Config{
		Store:       st,
		Source:      capture.NewSource(*source),
		Detector:    openDetector(*model),
		SourceName:  *source,
		Tracker:     tracker.DefaultConfig(),
		Speed:       speedCfg,
		Zone:        detector.DefaultZone(),
		SnapshotDir: *snapshots,
	})

	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	srv := server.New(server.Config{
		StaticDir: findWebDir(),
		Store:     st,
		Pipeline:  a,
	})

	events := server.NewEventStreamHandler(a)
	srv.RegisterEventStream(events)

	var notifier *alert.Notifier
	if *hooksDir != "" {
		notifier, err = alert.NewNotifier(*hooksDir)
		if err != nil {
			log.Fatalf("Failed to load alert hooks: %v", err)
		}
		fmt.Printf("Loaded %d alert hooks from %s\n", len(notifier.Manager().List()), *hooksDir)
	}

	a.RegisterEventCallback(func(ev *store.SpeedEvent) {
		events.PublishEvent(ev)
		if notifier != nil {
			notifier.Notify(ev)
		}
	})

	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down")
	a.Stop()
	if notifier != nil {
		notifier.Wait()
	}
}

// openStore opens the sqlite store at path, defaulting to
// ~/.speedwatch/speedwatch.db.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbDir := filepath.Join(homeDir, ".speedwatch")
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dbDir, "speedwatch.db")
	}
	return store.New(path)
}

// openDetector loads the YOLO model, falling back to a mock detector so
// the server and pipeline stay usable without a model file.
func openDetector(modelPath string) detector.Detector {
	cfg := detector.DefaultConfig()
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}

	d, err := detector.NewYOLODetector(cfg)
	if err != nil {
		log.Printf("Failed to load model %s: %v; using mock detector", cfg.ModelPath, err)
		return detector.NewMockDetector()
	}
	return d
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.speedwatch/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".speedwatch", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
