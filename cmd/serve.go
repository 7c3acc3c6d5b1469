package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/interview-coach/api"
	"github.com/maastricht-university/interview-coach/bodylang"
	"github.com/maastricht-university/interview-coach/camera"
	"github.com/maastricht-university/interview-coach/clients"
	"github.com/maastricht-university/interview-coach/config"
	"github.com/maastricht-university/interview-coach/logging"
	"github.com/maastricht-university/interview-coach/orchestrator"
	"github.com/maastricht-university/interview-coach/sentiment"
	"github.com/maastricht-university/interview-coach/store"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coaching HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, v, err := config.Load(o.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			log := logging.New(conf.Log.Level, conf.Log.Format)
			config.Watch(v, log, func(r *config.Root) {
				if logging.SetLevel(log, r.Log.Level) {
					log.WithField("level", r.Log.Level).Info("log level applied")
				}
			})
			return serve(cmd.Context(), conf, log)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, conf *config.Root, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, closeReports, err := buildEngine(ctx, conf, log)
	if err != nil {
		return err
	}
	defer closeReports()

	var asr api.Transcriber
	if conf.Models.ASR.URL != "" {
		asr = clients.ASRTranscriber{HTTP: clients.NewHTTP(conf.Models.ASR.Timeout), URL: conf.Models.ASR.URL}
	}

	srv := &http.Server{
		Addr: conf.Server.Addr,
		Handler: api.NewHandler(api.Options{
			Engine:       engine,
			Transcriber:  asr,
			Log:          log,
			LiveInterval: conf.Session.LiveInterval,
			CORSOrigins:  conf.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: conf.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	// stopping sessions ends open video feeds so the server can drain
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("stopping sessions")
	}
	return srv.Shutdown(shutdownCtx)
}

// buildEngine probes the model services and assembles the engine. The
// returned func releases the report sinks.
func buildEngine(ctx context.Context, conf *config.Root, log *logrus.Logger) (*orchestrator.Engine, func(), error) {
	bodyHTTP := clients.NewHTTP(conf.Models.Body.Timeout)
	textHTTP := clients.NewHTTP(conf.Models.Sentiment.Timeout)

	var bodyOK, textOK bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bodyOK = probeModel(ctx, log, bodyHTTP, "body", conf.Models.Body.URL, conf)
	}()
	go func() {
		defer wg.Done()
		textOK = probeModel(ctx, log, textHTTP, "sentiment", conf.Models.Sentiment.URL, conf)
	}()
	wg.Wait()

	var (
		lexicon sentiment.LexiconEstimator
		neural  sentiment.NeuralEstimator
	)
	if textOK {
		lexicon = sentiment.NewRemoteVader(textHTTP, conf.Models.Sentiment.URL)
		neural = sentiment.NewRemoteRoberta(textHTTP, conf.Models.Sentiment.URL)
	}

	reporter, closeReports, err := buildReporter(ctx, conf, log)
	if err != nil {
		return nil, nil, err
	}

	engine := orchestrator.NewEngine(orchestrator.Deps{
		Camera:   newCamera(conf.Camera),
		Body:     bodylang.NewRemoteClassifier(bodyHTTP, conf.Models.Body.URL, bodyOK),
		Voice:    sentiment.NewAnalyzer(lexicon, neural, conf.Session.TextTimeout, log),
		Reporter: reporter,
		Log:      log,
	}, orchestrator.Settings{
		BodyWindow:         conf.Session.BodyWindow,
		VoiceWindow:        conf.Session.VoiceWindow,
		FrameWindow:        conf.Session.FrameWindow,
		FrameTimeout:       conf.Session.FrameTimeout,
		MaxCaptureFailures: conf.Session.MaxCaptureFailures,
		ReportTimeout:      conf.Reports.Timeout,
	})
	return engine, closeReports, nil
}

func probeModel(ctx context.Context, log logrus.FieldLogger, h *clients.HTTP, name, url string, conf *config.Root) bool {
	entry := log.WithFields(logrus.Fields{"model": name, "url": url})
	if url == "" {
		entry.Warn("model service not configured, using neutral scores")
		return false
	}
	if err := h.WaitHealthy(ctx, url, conf.Models.ProbeTimeout); err != nil {
		entry.WithError(err).Warn("model service unavailable, using neutral scores")
		return false
	}
	entry.Info("model service ready")
	return true
}

func newCamera(c config.Camera) camera.Opener {
	switch c.Driver {
	case "ffmpeg":
		return camera.NewFFMPEG(camera.Config{
			Command:       c.Command,
			InputFormat:   c.InputFormat,
			Device:        c.Device,
			Width:         c.Width,
			Height:        c.Height,
			FPS:           c.FPS,
			Mirror:        c.Mirror,
			MaxFrameBytes: c.MaxFrameBytes,
		})
	case "replay":
		return camera.NewReplay(c.ReplayDir, c.FPS)
	default:
		return nil
	}
}

func buildReporter(ctx context.Context, conf *config.Root, log logrus.FieldLogger) (orchestrator.Reporter, func(), error) {
	var sinks orchestrator.MultiReporter
	closeAll := func() {}

	if conf.Reports.Dir != "" {
		sinks = append(sinks, orchestrator.NewFileReporter(conf.Reports.Dir))
		log.WithField("dir", conf.Reports.Dir).Info("writing session reports to disk")
	}
	if conf.Reports.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, conf.Reports.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, pg)
		closeAll = pg.Close
		log.Info("writing session reports to postgres")
	}

	if len(sinks) == 0 {
		return nil, closeAll, nil
	}
	return sinks, closeAll, nil
}
