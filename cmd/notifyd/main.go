package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/carcert/internal/backup"
	"github.com/dukerupert/carcert/internal/config"
	"github.com/dukerupert/carcert/internal/credential"
	"github.com/dukerupert/carcert/internal/logging"
	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/push"
	"github.com/dukerupert/carcert/internal/server"
)

const usage = `usage: notifyd [-config file] <command> [flags]

commands:
  serve        run the notification service (default)
  export       write an encrypted inbox backup (-o file)
  import       restore an encrypted inbox backup (-i file)
  vapid-keys   print the VAPID public key, generating a pair if needed
  push-test    send a test web push to the registered subscription
`

func main() {
	configPath := flag.String("config", os.Getenv("CARCERT_CONFIG"), "path to YAML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	cmd, args := "serve", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "export":
		err = exportCmd(cfg, args)
	case "import":
		err = importCmd(cfg, args)
	case "vapid-keys":
		err = vapidKeysCmd(cfg)
	case "push-test":
		err = pushTestCmd(cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	var vapidPublic string
	if cfg.Push.Enabled {
		keys, err := loadVAPIDKeys(cfg)
		if err != nil {
			// Registration still works; only the browser subscription step needs the key.
			logger.Warn("vapid keys unavailable", "error", err)
		} else {
			vapidPublic = keys.Public
		}
	}

	srv := server.New(server.Options{
		Config:         cfg,
		Store:          kv,
		VAPIDPublicKey: vapidPublic,
		Logger:         logger,
	})
	srv.Start(ctx)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("notifyd listening", "addr", httpServer.Addr, "store", cfg.Store.Backend, "push", cfg.Push.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func exportCmd(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "carcert-inbox.ccbk", "output file")
	fs.Parse(args)

	pass, err := backupPassphrase()
	if err != nil {
		return err
	}
	ctx := context.Background()
	kv, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := os.OpenFile(*out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	sum, err := backup.Export(ctx, kv, f, pass)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(*out)
		return err
	}
	fmt.Printf("exported %d notifications (%d keys) to %s\n", sum.Notifications, len(sum.Keys), *out)
	return nil
}

func importCmd(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("i", "", "backup file to restore")
	fs.Parse(args)
	if *in == "" {
		return errors.New("import: -i is required")
	}

	pass, err := backupPassphrase()
	if err != nil {
		return err
	}
	ctx := context.Background()
	kv, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("open %s: %w", *in, err)
	}
	defer f.Close()

	sum, err := backup.Import(ctx, kv, f, pass)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d notifications from backup taken %s\n", sum.Notifications, sum.CreatedAt.Format(time.RFC3339))
	return nil
}

func vapidKeysCmd(cfg *config.Config) error {
	keys, err := loadVAPIDKeys(cfg)
	if err != nil {
		return err
	}
	fmt.Println(keys.Public)
	return nil
}

func pushTestCmd(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys, err := loadVAPIDKeys(cfg)
	if err != nil {
		return err
	}
	kv, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	token, err := kv.Get(ctx, model.KeyPushToken)
	if err != nil {
		return fmt.Errorf("no registered push token: %w", err)
	}

	sender := push.NewSender(keys.Public, keys.Private, cfg.Push.Subscriber)
	err = sender.Send(ctx, token, push.Payload{
		Title: "Test Notification",
		Body:  "Push notifications are working!",
		Type:  string(model.TypeSystem),
	})
	if err != nil {
		return err
	}
	fmt.Println("test notification sent")
	return nil
}

func loadVAPIDKeys(cfg *config.Config) (credential.KeyPair, error) {
	creds, err := credential.Open(credential.Config{
		Backend:      cfg.Keyring.Backend,
		FileDir:      cfg.Keyring.FileDir,
		FilePassword: os.Getenv("CARCERT_KEYRING_PASSWORD"),
	})
	if err != nil {
		return credential.KeyPair{}, err
	}
	return creds.VAPIDKeys(cfg.Push.VAPIDPublicKey, push.GenerateVAPIDKeys)
}

func backupPassphrase() (string, error) {
	pass := os.Getenv("CARCERT_BACKUP_PASSPHRASE")
	if pass == "" {
		return "", errors.New("CARCERT_BACKUP_PASSPHRASE is not set")
	}
	return pass, nil
}
