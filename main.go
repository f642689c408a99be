package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arung-agamani/denpa-hub/config"
	"github.com/arung-agamani/denpa-hub/internal/auth"
	"github.com/arung-agamani/denpa-hub/internal/cache"
	"github.com/arung-agamani/denpa-hub/internal/channel"
	"github.com/arung-agamani/denpa-hub/internal/playlist"
	"github.com/arung-agamani/denpa-hub/internal/radio"
	"github.com/arung-agamani/denpa-hub/internal/radio/handler"
	"github.com/arung-agamani/denpa-hub/internal/sources/local"
	"github.com/arung-agamani/denpa-hub/internal/sources/radioparadise"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting denpa-hub",
		"port", cfg.Server.Port,
		"music_dir", cfg.Library.MusicDir,
		"station_name", cfg.Channels.StationName,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("Shutdown signal received")
		cancel()
	}()

	audio, err := cache.Open(filepath.Join(cfg.Cache.DataDir, "cache.db"), "audio", cfg.Cache.DataDir, int(cfg.Cache.MaxBytes))
	if err != nil {
		slog.Error("Failed to open audio cache", "error", err)
		os.Exit(1)
	}
	defer audio.Close()

	playlistStore, err := playlist.NewStore(filepath.Join(cfg.Cache.DataDir, "playlists"))
	if err != nil {
		slog.Error("Failed to open playlist store", "error", err)
		os.Exit(1)
	}
	defer playlistStore.Close()

	manager := playlist.NewManager(playlistStore)
	if err := manager.Restore(); err != nil {
		slog.Warn("Failed to restore persistent playlists", "error", err)
	}

	reaper := playlist.NewReaper(manager, 30*time.Minute, 5*time.Minute)
	go reaper.Start(ctx)

	authenticator := auth.New(auth.Config{
		Username:           cfg.Auth.DJUsername,
		Password:           cfg.Auth.DJPassword,
		JWTSecret:          cfg.Auth.JWTSecret,
		TokenTTL:           24 * time.Hour,
		MaxLoginAttempts:   5,
		LoginWindowSeconds: 300,
	})

	cooloff := time.Duration(cfg.Channels.CooloffSecs) * time.Second

	var entries []*handler.ChannelEntry

	localEntry, localSchedule, err := buildLocalChannel(cfg, audio, manager, playlistStore, cooloff)
	if err != nil {
		slog.Error("Failed to build local library channel", "error", err)
		os.Exit(1)
	}
	entries = append(entries, localEntry)

	localScheduler := local.NewScheduler(localSchedule, func(from, to local.TimeTag) {
		slog.Info("Local library rotation switched", "from", from, "to", to)
	}, time.Minute)
	go localScheduler.Start(ctx)

	if cfg.Channels.RadioParadise.Enabled {
		for _, slug := range cfg.Channels.RadioParadise.Channels {
			entry, err := buildRadioParadiseChannel(slug, audio, cooloff)
			if err != nil {
				slog.Warn("Skipping Radio Paradise channel", "channel", slug, "error", err)
				continue
			}
			entries = append(entries, entry)
		}
	}

	renderers := handler.NewRendererRegistry()
	// No renderer backends are statically configured; devices are UPnP/
	// OpenHome/Chromecast/MPD/Arylic/MPRIS targets discovered or entered at
	// runtime, not fixed at process start, so the registry starts empty and
	// is populated by whatever control surface later calls Register.

	server := radio.NewServer(radio.Deps{
		Config:    cfg,
		Auth:      authenticator,
		Channels:  entries,
		Playlists: manager,
		Renderers: renderers,
	})

	if err := server.Start(ctx); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down gracefully...")
	time.Sleep(2 * time.Second)
	slog.Info("Server stopped")
}

func buildLocalChannel(cfg *config.Config, audio *cache.Cache, manager *playlist.Manager, store *playlist.Store, cooloff time.Duration) (*handler.ChannelEntry, *local.Schedule, error) {
	scheduleStore, err := local.NewStore(cfg.Library.ScheduleFile)
	if err != nil {
		return nil, nil, err
	}

	var schedule *local.Schedule
	if scheduleStore.Exists() {
		schedule, err = scheduleStore.Load()
		if err != nil {
			slog.Warn("Failed to load saved schedule, rebuilding from music directory", "error", err)
			schedule = nil
		}
	}
	if schedule == nil {
		schedule = local.NewSchedule()
		if cfg.Server.Timezone != "" {
			if tzErr := schedule.SetTimezone(cfg.Server.Timezone); tzErr != nil {
				slog.Warn("Invalid timezone in config, falling back to UTC", "timezone", cfg.Server.Timezone, "error", tzErr)
			}
		}
		rotation, buildErr := local.BuildDefaultRotation(cfg.Library.MusicDir, local.NewTrackLibrary())
		if buildErr != nil {
			slog.Warn("Failed to scan music directory; starting with an empty rotation", "error", buildErr)
		} else if assignErr := schedule.AssignRotation(rotation.Tag, rotation); assignErr != nil {
			slog.Warn("Failed to assign default rotation", "error", assignErr)
		}
	}
	schedule.SetActiveTag(local.CurrentTimeTagIn(schedule.Location()))
	if err := scheduleStore.Save(schedule); err != nil {
		slog.Warn("Failed to persist schedule", "error", err)
	}

	desc := channel.Descriptor{Kind: "local", Slug: "local", DisplayName: cfg.Channels.StationName}
	historyPl := manager.CreatePersistentPlaylist("history:" + desc.Slug)
	source := local.NewTrackSource(schedule, audio)
	ch := channel.NewChannel(desc, source, audio, historyPl, store, cooloff)

	entry := &handler.ChannelEntry{
		Descriptor: desc,
		Channel:    ch,
		Stream:     channel.NewStreamHandler(ch, cfg.Channels.StationName, cfg.Channels.MaxClients, channel.FormatFLAC),
		OggStream:  channel.NewStreamHandler(ch, cfg.Channels.StationName, cfg.Channels.MaxClients, channel.FormatOggFLAC),
		ICYStream:  channel.NewStreamHandler(ch, cfg.Channels.StationName, cfg.Channels.MaxClients, channel.FormatICY),
		History:    channel.NewHistoricHandler(ch, audio, "flac", 50),
	}
	return entry, schedule, nil
}

func buildRadioParadiseChannel(slug string, audio *cache.Cache, cooloff time.Duration) (*handler.ChannelEntry, error) {
	channelNum, displayName, err := radioParadiseChannelByName(slug)
	if err != nil {
		return nil, err
	}

	client := radioparadise.NewClient(channelNum)
	desc := channel.Descriptor{Kind: "radioparadise", Slug: "rp-" + slug, DisplayName: displayName}
	source := radioparadise.NewTrackSource(client, audio, slug)
	ch := channel.NewChannel(desc, source, audio, nil, nil, cooloff)

	entry := &handler.ChannelEntry{
		Descriptor: desc,
		Channel:    ch,
		Stream:     channel.NewStreamHandler(ch, displayName, 0, channel.FormatFLAC),
		ICYStream:  channel.NewStreamHandler(ch, displayName, 0, channel.FormatICY),
	}
	return entry, nil
}

// radioParadiseChannelByName maps the config's channel name to Radio
// Paradise's numeric channel ID and a display name.
func radioParadiseChannelByName(name string) (int, string, error) {
	switch name {
	case "main":
		return 0, "Radio Paradise: Main Mix", nil
	case "mellow":
		return 1, "Radio Paradise: Mellow Mix", nil
	case "rock":
		return 2, "Radio Paradise: Rock Mix", nil
	case "eclectic":
		return 3, "Radio Paradise: Eclectic Mix", nil
	default:
		return 0, "", errUnknownRadioParadiseChannel(name)
	}
}

type errUnknownRadioParadiseChannel string

func (e errUnknownRadioParadiseChannel) Error() string {
	return "unknown radio paradise channel: " + string(e)
}
