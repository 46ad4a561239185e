package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dskvich/brahmos-bot/pkg/api/handler"
	"github.com/dskvich/brahmos-bot/pkg/auth"
	"github.com/dskvich/brahmos-bot/pkg/digitalocean"
	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/logger"
	"github.com/dskvich/brahmos-bot/pkg/memory"
	"github.com/dskvich/brahmos-bot/pkg/metrics"
	"github.com/dskvich/brahmos-bot/pkg/repository"
	"github.com/dskvich/brahmos-bot/pkg/services"
	"github.com/dskvich/brahmos-bot/pkg/telegram/handlers"
	"github.com/dskvich/brahmos-bot/pkg/telegram/matchers"
	"github.com/dskvich/brahmos-bot/pkg/telegram/middleware"
	"github.com/dskvich/brahmos-bot/pkg/upstream"
	"github.com/dskvich/brahmos-bot/pkg/workers"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
}

func runMain(cfg Config) error {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	workerGroup, closeFn, err := setupWorkers(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	err = workerGroup.Start(ctx)
	slog.Info("shutdown complete")
	return err
}

func setupWorkers(ctx context.Context, cfg Config) (workers.Group, func(), error) {
	startedAt := time.Now()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stateRepository := repository.NewStateRepository(cfg.StateCacheSize, cfg.StateTTL)
	recorder := metrics.NewRecorder(registry, metrics.Gauges{
		PremiumUsers: st.premium.Count,
		ChatUsers:    stateRepository.ChatUsers,
	})

	limiter := upstream.NewLimiter(cfg.UpstreamPerMinute)

	chatClient := upstream.NewChatClient(upstream.ChatConfig{
		URL:         cfg.ChatURL,
		Model:       cfg.ChatModel,
		MaxTokens:   cfg.ChatMaxTokens,
		Temperature: cfg.ChatTemperature,
		Timeout:     cfg.ChatTimeout,
	}, cfg.APIKey, limiter, recorder)

	imageClient := upstream.NewImageClient(upstream.ImageConfig{
		URL:             cfg.ImageURL,
		GenerateModel:   cfg.ImageModel,
		EditModel:       cfg.EditModel,
		Size:            cfg.ImageSize,
		Timeout:         cfg.ImageTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		DownloadRetries: cfg.DownloadRetries,
	}, cfg.APIKey, limiter, recorder)

	speechClient := upstream.NewSpeechClient(upstream.SpeechConfig{
		BaseURL: cfg.SpeechBaseURL,
		Model:   cfg.SpeechModel,
		Voice:   cfg.SpeechVoice,
		Timeout: cfg.SpeechTimeout,
	}, cfg.APIKey, limiter, recorder)

	conversations := memory.NewStore()

	chatService := services.NewChatService(chatClient, conversations, cfg.SystemPrompt)
	imageService := services.NewImageService(imageClient, st.usage, recorder)
	speechService := services.NewSpeechService(speechClient, st.usage, recorder)
	accountService := services.NewAccountService(st.premium, st.usage, recorder)

	owners := auth.NewOwners(cfg.OwnerIDs)

	b, err := bot.New(cfg.TelegramBotToken,
		bot.WithMiddlewares(middleware.RequestID, middleware.TrackUser(accountService)),
		bot.WithDefaultHandler(handlers.Hint()),
	)
	if err != nil {
		st.close()
		return nil, nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		st.close()
		return nil, nil, fmt.Errorf("getting bot identity: %w", err)
	}
	slog.Info("Telegram bot ready", "username", me.Username, "id", me.ID)

	var balance handlers.BalanceProvider
	if cfg.DigitalOceanToken != "" {
		balance = digitalocean.NewClient(cfg.DigitalOceanToken)
	}

	generateModel, editModel := imageClient.Models()

	r := router{
		bot:      b,
		username: me.Username,
		count:    middleware.CountCommands(recorder, me.Username, countedCommands),
	}

	r.command("start", handlers.Start(accountService))
	r.command("help", handlers.Help(accountService))
	r.command("chat", handlers.EnableChat(stateRepository))
	r.command("new", handlers.ClearChat(chatService, stateRepository))
	r.command("image", handlers.GenerateImage(imageService), middleware.ChatAction(models.ChatActionUploadPhoto))
	r.command("edit", handlers.RequestEdit(stateRepository))
	r.command("say", handlers.Say(speechService), middleware.ChatAction(models.ChatActionRecordVoice))
	r.command("prompt", handlers.EnhancePrompt(chatService), middleware.ChatAction(models.ChatActionTyping))
	r.command("myinfo", handlers.MyInfo(accountService))
	r.command("upgrade", handlers.Upgrade(cfg.ContactURL))
	r.command("ping", handlers.Ping(startedAt))

	ownerOnly := middleware.OwnerOnly(owners)
	r.command("addpro", handlers.AddPremium(accountService), ownerOnly)
	r.command("removepro", handlers.RemovePremium(accountService), ownerOnly)
	r.command("allusers", handlers.AllUsers(accountService), ownerOnly)
	r.command("stats", handlers.Stats(accountService, stateRepository, conversations, balance, startedAt), ownerOnly)
	r.command("debug", handlers.Debug(handlers.DebugInfo{
		ChatURL:     cfg.ChatURL,
		ChatModel:   chatClient.Model(),
		ImageURL:    cfg.ImageURL,
		ImageModel:  generateModel,
		EditModel:   editModel,
		SpeechURL:   cfg.SpeechBaseURL,
		SpeechModel: speechClient.Model(),
		Voice:       cfg.SpeechVoice,
		Storage:     cfg.StorageDriver,
	}), ownerOnly)

	r.callback(domain.HelpCallback, handlers.Help(accountService))
	r.callback(domain.MyInfoCallback, handlers.MyInfo(accountService))
	r.callback(domain.UpgradeCallback, handlers.Upgrade(cfg.ContactURL))
	r.callback(domain.BackToStartCallback, handlers.Start(accountService))
	r.callback(domain.QuickChatCallback, handlers.EnableChat(stateRepository))
	r.callback(domain.QuickImageCallback, handlers.AskImagePrompt(stateRepository))
	r.callback(domain.QuickTTSCallback, handlers.AskSpeechText(stateRepository))
	r.callback(domain.QuickEditCallback, handlers.EditHelp())

	r.match(matchers.PendingText(stateRepository, domain.PendingImagePrompt),
		handlers.ImageFromPending(imageService, stateRepository), middleware.ChatAction(models.ChatActionUploadPhoto))
	r.match(matchers.PendingText(stateRepository, domain.PendingSpeechText),
		handlers.SpeechFromPending(speechService, stateRepository), middleware.ChatAction(models.ChatActionRecordVoice))
	r.match(matchers.PendingEditPhoto(stateRepository),
		handlers.EditPhoto(imageService, stateRepository, imageClient), middleware.ChatAction(models.ChatActionUploadPhoto))
	r.match(matchers.PrivateChat(stateRepository),
		handlers.Chat(chatService), middleware.ChatAction(models.ChatActionTyping))
	r.match(matchers.Addressed(stateRepository, me.ID, me.Username, cfg.BotNames),
		handlers.Chat(chatService), middleware.ChatAction(models.ChatActionTyping))

	workerGroup := workers.Group{
		workers.NewTelegramBot(b),
		workers.NewUsageSweeper(st.usage, cfg.SweepInterval),
		workers.NewPremiumReloader(st.premium, cfg.RefreshInterval),
	}

	if cfg.OpsAddr != "" {
		var storage handler.StorageChecker
		if st.db != nil {
			storage = st.db
		}
		health := handler.NewHealth(storage, startedAt)
		workerGroup = append(workerGroup, workers.NewOpsServer(cfg.OpsAddr, health.Check, registry))
	}

	return workerGroup, st.close, nil
}

// countedCommands keeps the commands metric label set bounded.
var countedCommands = []string{
	"start", "help", "chat", "new", "image", "edit", "say", "prompt", "myinfo", "upgrade", "ping",
	"addpro", "removepro", "allusers", "stats", "debug",
	domain.HelpCallback, domain.MyInfoCallback, domain.UpgradeCallback, domain.BackToStartCallback,
	domain.QuickChatCallback, domain.QuickImageCallback, domain.QuickTTSCallback, domain.QuickEditCallback,
}

// router registers handlers behind the middleware every handler shares.
type router struct {
	bot      *bot.Bot
	username string
	count    bot.Middleware
}

func (r router) command(name string, h bot.HandlerFunc, m ...bot.Middleware) {
	r.match(matchers.Command(name, r.username), h, m...)
}

func (r router) callback(data string, h bot.HandlerFunc, m ...bot.Middleware) {
	r.match(matchers.Callback(data), h, m...)
}

func (r router) match(match bot.MatchFunc, h bot.HandlerFunc, m ...bot.Middleware) {
	r.bot.RegisterHandlerMatchFunc(match, h, append([]bot.Middleware{r.count}, m...)...)
}
