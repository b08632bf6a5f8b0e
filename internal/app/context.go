// Package app is the composition root: it builds every engine component
// from a loaded Config and wires them into the dependency graph
// cmd/usenetdl drives, the way the teacher's internal/app/context.go
// bundles its service interfaces behind one Context (there, built but
// never actually wired into cmd/gonzb/main.go's CLI path; here, this is
// the thing main.go actually calls).
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/articlepipeline"
	"github.com/jvz-devx/usenet-dl-sub002/internal/category"
	"github.com/jvz-devx/usenet-dl-sub002/internal/deobfuscate"
	"github.com/jvz-devx/usenet-dl-sub002/internal/directunpack"
	"github.com/jvz-devx/usenet-dl-sub002/internal/diskspace"
	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/duplicate"
	"github.com/jvz-devx/usenet-dl-sub002/internal/engine"
	"github.com/jvz-devx/usenet-dl-sub002/internal/eventbus"
	"github.com/jvz-devx/usenet-dl-sub002/internal/extract"
	"github.com/jvz-devx/usenet-dl-sub002/internal/infra/config"
	"github.com/jvz-devx/usenet-dl-sub002/internal/infra/logger"
	"github.com/jvz-devx/usenet-dl-sub002/internal/notify"
	"github.com/jvz-devx/usenet-dl-sub002/internal/orchestrator"
	"github.com/jvz-devx/usenet-dl-sub002/internal/parity"
	"github.com/jvz-devx/usenet-dl-sub002/internal/providerpool"
	"github.com/jvz-devx/usenet-dl-sub002/internal/queue"
	"github.com/jvz-devx/usenet-dl-sub002/internal/scheduler"
	"github.com/jvz-devx/usenet-dl-sub002/internal/speedlimit"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
	"github.com/jvz-devx/usenet-dl-sub002/internal/watcher"
)

// Context holds every long-lived component built from Config, the single
// source of truth the CLI commands operate against.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Store  *store.Store

	Limiter   *speedlimit.Limiter
	Events    *eventbus.Bus
	Queue     *queue.Manager
	Admitter  *engine.Admitter
	Scheduler *scheduler.Scheduler
	Watcher   *watcher.Watcher
	Notify    *notify.Dispatcher
}

// New builds every component graph from cfg. loadExisting controls
// whether the queue reloads the backlog from Store on construction; pass
// false for one-shot CLI invocations like "add" that shouldn't start a
// scheduling loop of their own.
func New(cfg *config.Config, log *logger.Logger, loadExisting bool) (*Context, error) {
	st, err := store.Open(cfg.Persistence.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	events := eventbus.New(eventbus.DefaultBufferSize)

	serverConfigs := make([]domain.ServerConfig, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		serverConfigs = append(serverConfigs, domain.ServerConfig{
			ID: s.ID, Host: s.Host, Port: s.Port, TLS: s.TLS,
			Username: s.Username, Password: s.Password,
			Connections: s.Connections, Priority: s.Priority, PipelineDepth: s.PipelineDepth,
		})
	}
	retry := providerpool.RetryConfig{
		MaxAttempts:       cfg.Processing.Retry.MaxAttempts,
		InitialDelay:      time.Duration(cfg.Processing.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.Processing.Retry.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: cfg.Processing.Retry.BackoffMultiplier,
	}
	pool := providerpool.New(serverConfigs, retry, log)

	limiter := speedlimit.New(cfg.Download.SpeedLimitBps)

	extractor := extract.NewDispatcher(extract.Config{
		UnrarPath:         cfg.Tools.UnrarPath,
		SevenZPath:        cfg.Tools.SevenZipPath,
		MaxRecursionDepth: cfg.Processing.Extraction.MaxRecursionDepth,
		ArchiveExtensions: prefixDots(cfg.Processing.Extraction.ArchiveExtensions),
	})
	parityHandler := parity.NewHandler(cfg.Tools.Par2Path, cfg.Tools.SearchPath)

	categoryRouter := buildCategoryRouter(cfg)

	pipeline := &articlepipeline.Pipeline{
		Store:              st,
		Pool:               pool,
		SpeedLimit:         limiter,
		Events:             events,
		TempDir:            cfg.Download.TempDir,
		FastFailSampleSize: cfg.Download.FastFailSampleSize,
		FastFailThreshold:  cfg.Download.FastFailThreshold,
		MaxFailureRatio:    cfg.Download.MaxFailureRatio,
	}

	var passwords []string
	if cfg.Tools.PasswordFile != "" {
		passwords = readPasswordFile(cfg.Tools.PasswordFile, log)
	}

	directUnpack := &directunpack.Coordinator{
		Store:        st,
		Extractor:    extractor,
		Events:       events,
		TempDir:      cfg.Download.TempDir,
		Passwords:    passwords,
		PollInterval: time.Duration(cfg.Processing.DirectUnpack.PollIntervalMs) * time.Millisecond,
		DirectRename: cfg.Processing.DirectUnpack.DirectRename,
	}
	if !cfg.Processing.DirectUnpack.Enabled {
		directUnpack = nil
	}

	orch := &orchestrator.Orchestrator{
		Store:     st,
		Parity:    parityHandler,
		Extractor: extractor,
		Category:  categoryRouter,
		Events:    events,
		Config: orchestrator.Config{
			TempDir:           cfg.Download.TempDir,
			Passwords:         passwords,
			CleanupExtensions: cfg.Processing.Cleanup.TargetExtensions,
			DeleteSamples:     cfg.Processing.Cleanup.DeleteSamples,
			SampleFolderNames: cfg.Processing.Cleanup.SampleFolderNames,
			FileCollision:     parseFileCollision(cfg.Download.FileCollision),
		},
	}

	eng := &engine.Engine{
		Store:        st,
		Pipeline:     pipeline,
		DirectUnpack: directUnpack,
		Orchestrator: orch,
	}

	q := queue.NewManager(st, eng, events, queue.Config{
		MaxConcurrentDownloads: cfg.Download.MaxConcurrentDownloads,
		Duplicate:              parseDuplicateConfig(cfg.Processing.Duplicate),
		DiskSpace: diskspace.Config{
			Enabled:        cfg.Processing.DiskSpace.Enabled,
			MinFreeSpace:   cfg.Processing.DiskSpace.MinFreeSpace,
			SizeMultiplier: cfg.Processing.DiskSpace.SizeMultiplier,
		},
	}, loadExisting)

	admitter := &engine.Admitter{
		Store: st,
		Queue: q,
		Deobfuscation: deobfuscate.Config{
			Enabled:   cfg.Automation.Deobfuscation.Enabled,
			MinLength: cfg.Automation.Deobfuscation.MinLength,
		},
	}

	sched, err := buildScheduler(st, limiter, q, events, cfg)
	if err != nil {
		return nil, err
	}

	var w *watcher.Watcher
	if len(cfg.Automation.WatchFolders) > 0 {
		folders := make([]watcher.Folder, 0, len(cfg.Automation.WatchFolders))
		for _, f := range cfg.Automation.WatchFolders {
			folders = append(folders, watcher.Folder{
				Path:         f.Path,
				Category:     f.Category,
				PollInterval: time.Duration(f.PollIntervalMs) * time.Millisecond,
			})
		}
		w = &watcher.Watcher{Store: st, Admitter: admitter, Folders: folders}
	}

	dispatcher := buildNotifyDispatcher(cfg, events)

	return &Context{
		Config:    cfg,
		Logger:    log,
		Store:     st,
		Limiter:   limiter,
		Events:    events,
		Queue:     q,
		Admitter:  admitter,
		Scheduler: sched,
		Watcher:   w,
		Notify:    dispatcher,
	}, nil
}

// Close releases the store handle.
func (c *Context) Close() error { return c.Store.Close() }

// RunNotifications subscribes to the event bus and dispatches every
// event through Notify until ctx is cancelled. Safe to call with a nil
// Notify (no webhooks/scripts configured).
func (c *Context) RunNotifications(ctx context.Context) {
	if c.Notify == nil {
		return
	}
	sub := c.Events.Subscribe()
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			c.Notify.Dispatch(ctx, ev)
		}
	}
}

func buildCategoryRouter(cfg *config.Config) *category.Router {
	rules := make(map[string]category.Rule, len(cfg.Persistence.Categories))
	for name, c := range cfg.Persistence.Categories {
		rule := category.Rule{Name: name, Destination: c.Destination, Scripts: c.Scripts}
		if c.PostProcess != "" {
			pp := parsePostProcess(c.PostProcess)
			rule.PostProcess = &pp
		}
		rules[name] = rule
	}
	return &category.Router{Rules: rules, DefaultDestination: cfg.Download.DownloadDir}
}

func buildScheduler(st *store.Store, limiter *speedlimit.Limiter, q *queue.Manager, events *eventbus.Bus, cfg *config.Config) (*scheduler.Scheduler, error) {
	for _, r := range cfg.Persistence.ScheduleRules {
		rule := domain.ScheduleRule{
			Name:      r.Name,
			Weekdays:  parseWeekdays(r.Weekdays),
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Action:    parseScheduleAction(r.Action),
			LimitBps:  r.LimitBps,
			Enabled:   r.Enabled,
		}
		if err := st.UpsertScheduleRule(context.Background(), rule); err != nil {
			return nil, fmt.Errorf("app: seed schedule rule %s: %w", r.Name, err)
		}
	}
	rules, err := st.ListScheduleRules(context.Background())
	if err != nil {
		return nil, fmt.Errorf("app: load schedule rules: %w", err)
	}
	return &scheduler.Scheduler{Rules: rules, Limiter: limiter, Queue: q, Events: events}, nil
}

func buildNotifyDispatcher(cfg *config.Config, events *eventbus.Bus) *notify.Dispatcher {
	if len(cfg.Notify.Webhooks) == 0 && len(cfg.Notify.Scripts) == 0 {
		return nil
	}
	d := &notify.Dispatcher{Events: events}
	for _, w := range cfg.Notify.Webhooks {
		d.Webhooks = append(d.Webhooks, &notify.HTTPWebhookSink{
			NameStr: w.Name,
			URL:     w.URL,
			Headers: w.Headers,
			Timeout: time.Duration(w.TimeoutMs) * time.Millisecond,
			Events:  w.Events,
		})
	}
	for _, s := range cfg.Notify.Scripts {
		d.Scripts = append(d.Scripts, &notify.ScriptExecSink{
			NameStr: s.Name,
			Command: s.Command,
			Args:    s.Args,
			Timeout: time.Duration(s.TimeoutMs) * time.Millisecond,
			Events:  s.Events,
		})
	}
	return d
}

func parseDuplicateConfig(c config.DuplicateConfig) duplicate.Config {
	methods := make([]duplicate.Method, 0, len(c.Methods))
	for _, m := range c.Methods {
		methods = append(methods, duplicate.Method(m))
	}
	action := duplicate.Action(c.Action)
	switch strings.ToLower(c.Action) {
	case "block":
		action = duplicate.ActionBlock
	case "warn":
		action = duplicate.ActionWarn
	case "allow":
		action = duplicate.ActionAllow
	}
	return duplicate.Config{Enabled: c.Enabled, Action: action, Methods: methods}
}

func parsePostProcess(s string) domain.PostProcess {
	switch strings.ToLower(s) {
	case "none":
		return domain.PostProcessNone
	case "verify":
		return domain.PostProcessVerify
	case "repair":
		return domain.PostProcessRepair
	case "unpack":
		return domain.PostProcessUnpack
	default:
		return domain.PostProcessUnpackAndCleanup
	}
}

func parseFileCollision(s string) domain.FileCollisionPolicy {
	switch strings.ToLower(s) {
	case "overwrite":
		return domain.FileCollisionOverwrite
	case "skip":
		return domain.FileCollisionSkip
	default:
		return domain.FileCollisionRename
	}
}

func parseScheduleAction(s string) domain.ScheduleAction {
	switch strings.ToLower(s) {
	case "unlimited":
		return domain.ScheduleActionUnlimited
	case "pause":
		return domain.ScheduleActionPause
	default:
		return domain.ScheduleActionSpeedLimit
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(names []string) map[time.Weekday]struct{} {
	out := make(map[time.Weekday]struct{}, len(names))
	for _, n := range names {
		key := strings.ToLower(n)
		if len(key) > 3 {
			key = key[:3]
		}
		if d, ok := weekdayNames[key]; ok {
			out[d] = struct{}{}
		}
	}
	return out
}

func prefixDots(exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		if strings.HasPrefix(e, ".") {
			out[i] = e
		} else {
			out[i] = "." + e
		}
	}
	return out
}

func readPasswordFile(path string, log *logger.Logger) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("app: could not read password file %s: %v", path, err)
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
