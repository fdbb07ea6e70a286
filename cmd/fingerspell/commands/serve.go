package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/config"
	"github.com/ayusman/fingerspell/internal/server"
	"github.com/ayusman/fingerspell/internal/server/api"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/tray"
)

const shutdownTimeout = 5 * time.Second

var (
	serveAddr   string
	serveCamera bool
	serveTray   bool
	serveStatic string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recognition server",
	Long: `Run the HTTP API. Browsers post landmarks to sessions and receive
letters, text and spelling suggestions over a websocket.

With --camera the local camera feeds a dedicated session and an MJPEG
preview is served at /api/stream. With --tray a system tray icon toggles
recognition and shows the latest letter.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveCamera, "camera", false, "capture from the local camera")
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show a system tray icon")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "directory with the web UI (overrides server.static_dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	webDir := findWebDir(cfg.Server.StaticDir)
	if webDir != "" {
		slog.Info("serving static files", "dir", webDir)
	}

	srvCfg := server.Config{
		StaticDir: webDir,
		Store:     a.Store(),
		Registry:  a.Registry(),
		Classify:  classifyOptions(cfg),
	}
	// A nil *CameraSource must not become a non-nil interface.
	if cam := a.Camera(); cam != nil {
		srvCfg.Frames = cam
	}
	httpSrv := server.New(srvCfg).NewHTTPServer(cfg.Server.Addr)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	if cfg.Tray.Enabled {
		t := newTray(a, cfg, stop)
		// systray owns the main thread until Quit.
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
	}

	<-ctx.Done()
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}
	return nil
}

// applyServeFlags lets explicit flags override the config file.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("camera") {
		cfg.Camera.Enabled = serveCamera
	}
	if cmd.Flags().Changed("tray") {
		cfg.Tray.Enabled = serveTray
	}
	if cmd.Flags().Changed("static") {
		cfg.Server.StaticDir = serveStatic
	}
}

func classifyOptions(cfg *config.Config) api.ClassifyOptions {
	opts := cfg.SessionOptions()
	return api.ClassifyOptions{
		Language:  opts.Language,
		Side:      opts.Side,
		Threshold: opts.Threshold,
		Normalize: opts.Normalize,
	}
}

// newTray wires the tray menu to the app. Quitting from the tray stops the
// server.
func newTray(a *app.App, cfg *config.Config, stop context.CancelFunc) *tray.Tray {
	t := tray.New(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnOpen(func() {
		if err := openBrowser(uiURL(cfg.Server.Addr)); err != nil {
			slog.Warn("failed to open browser", "error", err)
		}
	})
	t.OnQuit(stop)
	a.Scheduler().OnEmit(func(s *session.Session, symbol string) {
		if cam := a.Camera(); cam != nil && cam.Target() != s {
			return
		}
		t.SetLast(symbol, s.State().Text)
	})
	return t
}

// uiURL turns a listen address into a browsable URL.
func uiURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir returns dir when set, otherwise searches for the web directory
// in common locations: "web", "../web", "../../web" and ~/.fingerspell/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dir string) string {
	if dir != "" {
		return dir
	}

	// Check relative paths from current working directory
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

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, config.DefaultBaseDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
