package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"nurseroute/internal/api"
	"nurseroute/internal/config"
	"nurseroute/internal/metrics"
	"nurseroute/internal/migration"
	"nurseroute/internal/model"
	"nurseroute/internal/opt"
	"nurseroute/internal/plot"
	"nurseroute/internal/report"
	"nurseroute/internal/store"
	"nurseroute/internal/webhooks"
)

type options struct {
	config      string
	plot        string
	fitnessPlot string
	print       bool
	polish      int
	linger      bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "config.yaml", "path to the YAML configuration")
	flag.StringVar(&o.plot, "plot", "", "write the best routes to this image file")
	flag.StringVar(&o.fitnessPlot, "fitness-plot", "", "write the fitness curve of the best island to this image file")
	flag.BoolVar(&o.print, "print", true, "print the best solution as a route table")
	flag.IntVar(&o.polish, "polish", 0, "run up to this many 2-opt passes over the final best routes")
	flag.BoolVar(&o.linger, "linger", false, "keep the status server up after the run until interrupted")
	flag.Parse()

	if err := run(o); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

func run(o options) error {
	cfg, err := config.Load(o.config)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)
	slog.SetDefault(log)

	inst, err := model.LoadInstance(cfg.Problem)
	if err != nil {
		return err
	}
	log.Info("instance loaded", "name", inst.Name, "patients", len(inst.Patients), "nurses", inst.Nurses, "benchmark", inst.Benchmark)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if len(cfg.Webhooks.URLs) > 0 {
		pub := webhooks.NewPublisher(cfg.Webhooks, log)
		pubCtx, cancelPub := context.WithCancel(context.Background())
		pubDone := make(chan struct{})
		go func() {
			pub.Run(pubCtx)
			close(pubDone)
		}()
		defer func() {
			pub.Close()
			select {
			case <-pubDone:
			case <-time.After(cfg.Webhooks.Timeout + time.Second):
				log.Warn("webhook deliveries still pending at exit")
			}
			cancelPub()
		}()
		st = webhooks.NotifyingStore{Store: st, Pub: pub}
	}

	metrics.RegisterDefault()
	runID := uuid.NewString()
	hist := &report.History{}
	reporters := report.Multi{
		report.LogReporter{Log: log, Benchmark: inst.Benchmark},
		report.MetricsReporter{},
		hist,
	}

	srvCtx, stopSrv := context.WithCancel(context.Background())
	defer stopSrv()
	srvDone := make(chan error, 1)
	if cfg.Server.Addr != "" {
		srv := api.NewServer(st, inst.Name, cfg, log)
		reporters = append(reporters, srv)
		go func() { srvDone <- srv.ListenAndServe(srvCtx, cfg.Server.Addr) }()
	} else {
		srvDone <- nil
	}

	deps := opt.Deps{
		RunID:    runID,
		Store:    st,
		Reporter: reporters,
		Recorder: metrics.Recorder{},
		Logger:   log.With("run", runID),
	}

	start := time.Now()
	var (
		best   *model.Individual
		island int
	)
	if cfg.Islands.Enabled {
		tr, err := migration.Open(cfg.Transport)
		if err != nil {
			return err
		}
		if tr != nil {
			defer func() { _ = tr.Close() }()
			mig, err := migration.NewMigrator(ctx, tr, inst.Name, log)
			if err != nil {
				return err
			}
			defer func() { _ = mig.Close() }()
			deps.Exchange = mig
		}
		log.Info("starting islands", "run", runID, "islands", cfg.IslandCount(), "transport", cfg.Transport.Kind)
		res, err := opt.RunIslands(ctx, inst, cfg, deps)
		if err != nil {
			return err
		}
		best, island = res.Best, res.Island
	} else {
		log.Info("starting engine", "run", runID, "workers", cfg.Run.Workers)
		res, err := opt.Solve(ctx, inst, cfg, deps)
		if err != nil {
			return err
		}
		best = res.Best
	}
	if best == nil {
		return errors.New("run produced no individual")
	}
	if o.polish > 0 {
		polished := opt.TwoOpt(inst, best, opt.PenaltiesFrom(cfg.Penalty), o.polish)
		if polished.Fitness < best.Fitness && (polished.Feasible || !best.Feasible) {
			log.Info("2-opt improved best", "from", best.Fitness, "to", polished.Fitness)
			best = polished
		}
	}
	log.Info("run finished", "fitness", best.Fitness, "feasible", best.Feasible, "island", island, "elapsed", time.Since(start).Round(time.Millisecond))

	if err := saveFinal(context.Background(), st, runID, inst, island, best); err != nil {
		log.Warn("persist final solution", "error", err)
	}
	if o.print {
		if err := report.WriteRouteTable(os.Stdout, inst, best); err != nil {
			return err
		}
	}
	if o.plot != "" {
		if err := plot.Routes(inst, best, fmt.Sprintf("%s: %.2f", inst.Name, best.Fitness), o.plot); err != nil {
			return fmt.Errorf("plot routes: %w", err)
		}
	}
	if o.fitnessPlot != "" {
		if err := plot.Fitness(hist.Island(max(island, 0)), fmt.Sprintf("%s island %d", inst.Name, max(island, 0)), o.fitnessPlot); err != nil {
			return fmt.Errorf("plot fitness: %w", err)
		}
	}

	if o.linger && cfg.Server.Addr != "" {
		log.Info("run done, status server still up; interrupt to exit", "addr", cfg.Server.Addr)
		<-ctx.Done()
	}
	stopSrv()
	return <-srvDone
}

// saveFinal stores the final best unless the store already holds one at
// least as good, which is the common case since engines persist every
// improvement as it happens.
func saveFinal(ctx context.Context, st store.Store, runID string, inst *model.Instance, island int, best *model.Individual) error {
	prev, err := st.BestSolution(ctx, inst.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	case prev.Feasible && !best.Feasible:
		return nil
	case prev.Feasible == best.Feasible && prev.Fitness <= best.Fitness:
		return nil
	}
	_, err = st.SaveSolution(ctx, model.Solution{
		RunID:    runID,
		Instance: inst.Name,
		Island:   max(island, 0),
		Fitness:  best.Fitness,
		Feasible: best.Feasible,
		Routes:   best.OneIndexed(),
	})
	return err
}
