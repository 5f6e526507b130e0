package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/socialbot/bot/eventbus"
	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/internal/version"
	"github.com/hrygo/socialbot/store"
)

var rootCmd = &cobra.Command{
	Use:   "socialbot",
	Short: `An AI-powered social media bot. Generates posts, comments, and replies tuned to your preferences.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Only load .env for direct binary execution (not when running as systemd service)
		if !isRunningAsSystemdService() {
			// Try to load .env file from current directory (ignore error if file doesn't exist)
			_ = godotenv.Load()
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot as a long-lived service driven by the change feed",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		storeInstance, err := openStore(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer storeInstance.Close()

		orch, err := buildOrchestrator(instanceProfile, storeInstance)
		if err != nil {
			return err
		}

		transport, err := newEventTransport(instanceProfile)
		if err != nil {
			return err
		}

		bus := eventbus.New(transport, eventbus.Options{})
		orch.RegisterHandlers(bus)

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		// The default signal sent by the `kill` command is SIGTERM,
		// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			cancel()
		}()

		printGreetings(instanceProfile)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return bus.Run(gctx)
		})

		metricsPort := viper.GetInt("metrics-port")
		if metricsPort > 0 {
			g.Go(func() error {
				return serveMetrics(gctx, metricsPort)
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var createPostCmd = &cobra.Command{
	Use:   "create-post",
	Short: "Generate and publish one post from a stored caption",
	RunE: func(cmd *cobra.Command, _ []string) error {
		platformName, _ := cmd.Flags().GetString("platform")
		imageURL, _ := cmd.Flags().GetString("image-url")

		return withOrchestrator(func(ctx context.Context, app *app) error {
			result, err := app.orchestrator.CreatePost(ctx, platformName, imageURL)
			if err != nil {
				return err
			}
			printResult(result)
			if !result.Succeeded() {
				return errors.New("post failed")
			}
			return nil
		})
	},
}

var commentToPostCmd = &cobra.Command{
	Use:   "comment-to-post",
	Short: "Generate and publish a comment under an existing post",
	RunE: func(cmd *cobra.Command, _ []string) error {
		platformName, _ := cmd.Flags().GetString("platform")
		postID, _ := cmd.Flags().GetString("post-id")
		if postID == "" {
			return errors.New("--post-id is required")
		}

		return withOrchestrator(func(ctx context.Context, app *app) error {
			result, err := app.orchestrator.CommentToPost(ctx, platformName, postID)
			if err != nil {
				return err
			}
			printResult(result)
			if !result.Succeeded() {
				return errors.New("comment failed")
			}
			return nil
		})
	},
}

var replyToCommentsCmd = &cobra.Command{
	Use:   "reply-to-comments",
	Short: "Reply to recent comments on a post",
	RunE: func(cmd *cobra.Command, _ []string) error {
		platformName, _ := cmd.Flags().GetString("platform")
		postID, _ := cmd.Flags().GetString("post-id")
		numComments, _ := cmd.Flags().GetInt("num-comments")
		if postID == "" {
			return errors.New("--post-id is required")
		}

		return withOrchestrator(func(ctx context.Context, app *app) error {
			results, err := app.orchestrator.ReplyToComments(ctx, platformName, postID, numComments)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				printResult(result)
				if !result.Succeeded() {
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d replies failed", failed, len(results))
			}
			return nil
		})
	},
}

var addCaptionCmd = &cobra.Command{
	Use:   "add-caption [text]",
	Short: "Add a caption to the pool, or bulk-import captions from a JSON file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" && len(args) == 0 {
			return errors.New("either a caption text argument or --file is required")
		}

		return withStore(func(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) error {
			if file != "" {
				return importCaptions(ctx, storeInstance, file)
			}

			length, _ := cmd.Flags().GetString("length")
			category, _ := cmd.Flags().GetString("category")
			tone, _ := cmd.Flags().GetString("tone")
			if length != "" && !store.IsValidCaptionLength(length) {
				return errors.Errorf("unknown length variant %q", length)
			}

			caption, err := storeInstance.CreateCaption(ctx, &store.CreateCaption{
				Text:     args[0],
				Length:   length,
				Category: category,
				Tone:     tone,
			})
			if err != nil {
				return err
			}
			fmt.Printf("caption %d added\n", caption.ID)
			return nil
		})
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("metrics-port", 28082)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the bot, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, key := range []string{"mode", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	serveCmd.Flags().Int("metrics-port", 28082, "port for the prometheus metrics endpoint, 0 disables it")
	if err := viper.BindPFlag("metrics-port", serveCmd.Flags().Lookup("metrics-port")); err != nil {
		panic(err)
	}

	createPostCmd.Flags().String("platform", "instagram", "platform to post on (instagram, twitter)")
	createPostCmd.Flags().String("image-url", "", "optional image URL to attach")

	commentToPostCmd.Flags().String("platform", "instagram", "platform to comment on")
	commentToPostCmd.Flags().String("post-id", "", "post to comment on")

	replyToCommentsCmd.Flags().String("platform", "instagram", "platform to reply on")
	replyToCommentsCmd.Flags().String("post-id", "", "post whose comments should get replies")
	replyToCommentsCmd.Flags().Int("num-comments", 5, "maximum number of comments to reply to")

	addCaptionCmd.Flags().String("file", "", "JSON file holding an array of caption records")
	addCaptionCmd.Flags().String("length", "medium", "caption length variant (short, medium, long)")
	addCaptionCmd.Flags().String("category", "", "caption category")
	addCaptionCmd.Flags().String("tone", "", "caption tone")

	rootCmd.AddCommand(serveCmd, createPostCmd, commentToPostCmd, replyToCommentsCmd, addCaptionCmd)

	viper.SetEnvPrefix("socialbot")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// loadProfile assembles the runtime profile from flags and environment.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("SocialBot %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if profile.RealtimeURL != "" {
		fmt.Printf("Change feed: websocket (%s)\n", profile.RealtimeURL)
	} else {
		fmt.Println("Change feed: postgres LISTEN/NOTIFY")
	}
}

func printResult(result *store.ActionResult) {
	if result.Succeeded() {
		fmt.Printf("%s on %s succeeded (target %s)\n", result.Action, result.Platform, result.TargetID)
		return
	}
	fmt.Printf("%s on %s failed: %s\n", result.Action, result.Platform, result.Error)
}

func serveMetrics(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	// Check if invoked by systemd (environment variables set by systemd)
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
