package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/aida/ai/tasks"
	"github.com/hrygo/aida/internal/profile"
	"github.com/hrygo/aida/plugin/chat_apps/channels"
	"github.com/hrygo/aida/plugin/chat_apps/channels/telegram"
	"github.com/hrygo/aida/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, reminders and chat channels",
	RunE: func(_ *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
		defer stop()
		return serve(ctx, p)
	},
}

func serve(ctx context.Context, p *profile.Profile) error {
	a, err := newApp(ctx, p)
	if err != nil {
		return err
	}
	defer a.close()

	g, ctx := errgroup.WithContext(ctx)
	a.start(ctx)

	if p.TasksEnabled {
		reminders := tasks.NewReminderService(a.store, time.Duration(p.ReminderInterval)*time.Second, a.assistant.OnReminder)
		reminders.Start(ctx)
		defer reminders.Stop()
	}

	router := channels.NewChannelRouter()
	defer router.Close()
	if p.TelegramToken != "" {
		ch, err := telegram.NewTelegramChannel(&telegram.TelegramConfig{
			BotToken:       p.TelegramToken,
			AllowedChatIDs: p.TelegramChatIDs,
		})
		if err != nil {
			return errors.Wrap(err, "failed to connect to telegram")
		}
		router.Register(ch)
		if n := newChatNotifier(router, p.TelegramChatIDs); n != nil {
			a.assistant.AddNotifier(n)
		}
	}
	handler := a.assistant.ChatHandler()
	for _, ch := range router.Channels() {
		g.Go(func() error {
			slog.Info("chat channel started", "platform", ch.Name())
			return ch.Run(ctx, handler)
		})
	}

	srv := server.New(p, a.assistant, server.WithMetrics(a.exporter))
	g.Go(func() error {
		return srv.Start(ctx)
	})

	printGreetings(p, srv.Addr())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("aida stopped")
	return nil
}

func printGreetings(p *profile.Profile, addr string) {
	fmt.Printf("Aida %s started\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Language model: %s (%s)\n", p.LLMModel, p.LLMProvider)
	fmt.Printf("API: http://%s/api/v1\n", addr)
	if p.IsAuthEnabled() {
		fmt.Println("API authentication: enabled")
	}
	fmt.Printf("Say '%s' to get my attention.\n", p.WakeWord)
}
