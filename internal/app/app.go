// Package app wires the configuration, storage backend, gallery and
// publication pipeline together and runs one CLI command against them.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nir0k/logger"

	"github.com/nir0k/photokeep/internal/catalog"
	"github.com/nir0k/photokeep/internal/config"
	"github.com/nir0k/photokeep/internal/gallery"
	"github.com/nir0k/photokeep/internal/location"
	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/naming"
	"github.com/nir0k/photokeep/internal/photo"
	"github.com/nir0k/photokeep/internal/publish"
	"github.com/nir0k/photokeep/internal/storage"
	"github.com/nir0k/photokeep/internal/storage/library"
	"github.com/nir0k/photokeep/internal/storage/scoped"
	"github.com/nir0k/photokeep/internal/tasks"
)

// Run is the main entry point for the CLI workflow.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(strings.TrimSpace(opts.ConfigPath))
	if err != nil {
		return err
	}
	if backend := strings.TrimSpace(opts.Backend); backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts.ApplyConfig(cfg)
	if err := opts.Validate(); err != nil {
		return err
	}

	logCfg := logger.LogConfig{
		FilePath:       opts.LogFile,
		Format:         "standard",
		FileLevel:      opts.LogLevel,
		ConsoleLevel:   "fatal",
		ConsoleOutput:  false,
		EnableRotation: true,
		RotationConfig: logger.RotationConfig{
			MaxSize:    25,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
	logInstance, err := logger.NewLogger(logCfg)
	if err != nil {
		return err
	}

	infof := logInstance.Infof
	warnf := logInstance.Warningf
	errorf := logInstance.Errorf

	infof("Starting photokeep command=%s backend=%s config=%s", opts.Command, cfg.Backend, opts.ConfigPath)

	env, err := buildEnvironment(cfg, warnf)
	if err != nil {
		errorf("Environment setup failed: %v", err)
		return err
	}
	defer env.close()

	if err := dispatch(ctx, env, opts, infof, warnf); err != nil {
		errorf("Command %s failed: %v", opts.Command, err)
		return err
	}
	return nil
}

// environment holds everything a command can touch. The backend is built
// once from the configuration and injected everywhere; commands never
// branch on the backend kind themselves.
type environment struct {
	cfg       config.Config
	gen       *naming.Generator
	backend   storage.Backend
	index     publish.Index
	gallery   *gallery.Manager
	publisher *publish.Publisher
	closers   []func() error
}

func buildEnvironment(cfg config.Config, warnf func(string, ...interface{})) (*environment, error) {
	privateDir := cfg.PrivateDir
	if privateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		privateDir = filepath.Join(home, ".photokeep")
	}
	if err := os.MkdirAll(privateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create private directory: %w", err)
	}

	env := &environment{
		cfg: cfg,
		gen: naming.New(cfg.MediaDirs, privateDir, nil),
	}
	runner := tasks.NewRunner(warnf)

	switch cfg.Backend {
	case config.BackendLibrary:
		cat, err := catalog.Open(cfg.CatalogDir)
		if err != nil {
			return nil, err
		}
		// library.Backend closes the catalog itself.
		env.backend = library.New(cat, env.gen, runner, cfg.Timeouts.SingleFile)
	default:
		env.backend = scoped.New(env.gen, runner, cfg.Timeouts.SingleFile)
		if cfg.CatalogDir != "" {
			cat, err := catalog.Open(cfg.CatalogDir)
			if err != nil {
				return nil, err
			}
			env.index = publish.NewCatalogIndex(cat)
			env.closers = append(env.closers, cat.Close)
		}
	}
	env.closers = append(env.closers, env.backend.Close)

	var uploader publish.Uploader
	if cfg.Upload.Endpoint != "" {
		uploader = publish.NewHTTPUploader(cfg.Upload.Endpoint, cfg.DeviceID, cfg.Upload.Timeout)
	}
	env.publisher = publish.NewPublisher(env.backend, env.index, uploader, cfg.Upload.AutoSend)
	env.gallery = gallery.New(env.backend, env.index, runner, cfg.Timeouts.MultiFile, warnf)
	return env, nil
}

func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func dispatch(ctx context.Context, env *environment, opts Options, infof, warnf func(string, ...interface{})) error {
	switch opts.Command {
	case CommandCapture:
		return runCapture(ctx, env, opts, infof, warnf)
	case CommandList:
		return runList(ctx, env)
	case CommandDetails:
		return runDetails(ctx, env)
	case CommandLatest:
		return runLatest(ctx, env)
	case CommandShow:
		return runShow(ctx, env, opts.Args[0])
	case CommandDescribe:
		return runDescribe(ctx, env, opts.Args[0], opts.Args[1])
	case CommandDelete:
		return runDelete(ctx, env, opts.Args[0], infof)
	case CommandRescan:
		return runRescan(ctx, env, infof)
	case CommandSend:
		return runSend(ctx, env, opts.Args[0])
	}
	return fmt.Errorf("unknown command %q", opts.Command)
}

func captureProvider(opts Options) (location.Provider, error) {
	if opts.GPXPath != "" {
		return location.LoadTrack(opts.GPXPath)
	}
	if opts.HasFix {
		return location.Fixed{Loc: media.Location{
			Latitude:  opts.Latitude,
			Longitude: opts.Longitude,
			Altitude:  opts.Altitude,
			Provider:  "manual",
		}}, nil
	}
	return location.None{}, nil
}

func runCapture(ctx context.Context, env *environment, opts Options, infof, warnf func(string, ...interface{})) error {
	data, err := os.ReadFile(opts.ImagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	provider, err := captureProvider(opts)
	if err != nil {
		return err
	}
	takenAt := time.Now()
	fix, err := provider.Locate(takenAt)
	if err != nil {
		return err
	}

	facing := media.FacingBack
	if opts.Front {
		facing = media.FacingFront
	}
	c := media.NewJPEGCapture(data, facing, takenAt, fix)
	if !c.LooksLikeJPEG() {
		return storage.Errorf(storage.KindFormatNotSupported, "capture photo",
			"%s does not look like a JPEG image", opts.ImagePath)
	}

	p, err := photo.Capture(ctx, env.backend, c)
	if err != nil {
		return err
	}
	if opts.Description != "" {
		if err := p.SetDescription(ctx, opts.Description); err != nil {
			return err
		}
	}

	name, err := p.DisplayName(ctx)
	if err != nil {
		name = p.Locator().String()
	}
	infof("Stored %s as %s", opts.ImagePath, p.Locator())
	fmt.Printf("stored %s (%s)\n", p.Locator(), name)

	if err := p.Publish(ctx, env.publisher); err != nil {
		// The photo is already safely stored; publication is advisory.
		warnf("Publication failed for %s: %v", p.Locator(), err)
		fmt.Printf("publication failed: %v\n", err)
	}
	return nil
}

func runList(ctx context.Context, env *environment) error {
	locators, err := env.gallery.List(ctx)
	if err != nil {
		return err
	}
	for _, loc := range locators {
		fmt.Println(loc)
	}
	return nil
}

func runDetails(ctx context.Context, env *environment) error {
	details, err := env.gallery.Details(ctx)
	if err != nil {
		return err
	}
	for _, d := range details {
		fmt.Printf("%s\t%s\t%s\n", d.Locator, d.DisplayName, d.Metadata)
		if d.CameraMake != "" || d.CameraModel != "" {
			fmt.Printf("\tcamera: %s %s\n", d.CameraMake, d.CameraModel)
		}
	}
	return nil
}

func runLatest(ctx context.Context, env *environment) error {
	loc, ok, err := env.gallery.Latest(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("gallery is empty")
		return nil
	}
	fmt.Println(loc)
	return nil
}

func runShow(ctx context.Context, env *environment, rawLocator string) error {
	loc, err := storage.ParseLocator(rawLocator)
	if err != nil {
		return err
	}
	p, err := photo.Open(ctx, env.backend, loc)
	if err != nil {
		return err
	}
	name, err := p.DisplayName(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", p.Locator(), name, p.Metadata())
	return nil
}

func runDescribe(ctx context.Context, env *environment, rawLocator, description string) error {
	loc, err := storage.ParseLocator(rawLocator)
	if err != nil {
		return err
	}
	p, err := photo.Open(ctx, env.backend, loc)
	if err != nil {
		return err
	}
	if err := p.SetDescription(ctx, description); err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", p.Locator(), p.Metadata())
	return nil
}

func runDelete(ctx context.Context, env *environment, rawLocator string, infof func(string, ...interface{})) error {
	loc, err := storage.ParseLocator(rawLocator)
	if err != nil {
		return err
	}
	if err := env.gallery.Delete(ctx, loc); err != nil {
		return err
	}
	infof("Deleted %s", loc)
	fmt.Printf("deleted %s\n", loc)
	return nil
}

func runRescan(ctx context.Context, env *environment, infof func(string, ...interface{})) error {
	if env.index == nil {
		return fmt.Errorf("no media index is configured (set catalog_dir)")
	}
	root := env.gen.RootDirectory()
	added, removed, err := env.index.Rescan(ctx, root)
	if err != nil {
		return err
	}
	infof("Rescanned %s: %d added, %d removed", root, added, removed)
	fmt.Printf("rescanned %s: %d added, %d removed\n", root, added, removed)
	return nil
}

func runSend(ctx context.Context, env *environment, rawLocator string) error {
	loc, err := storage.ParseLocator(rawLocator)
	if err != nil {
		return err
	}
	if err := env.publisher.Send(ctx, loc); err != nil {
		return err
	}
	fmt.Printf("sent %s\n", loc)
	return nil
}
