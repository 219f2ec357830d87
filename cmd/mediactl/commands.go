package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/config"
	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/media"
	"github.com/swinglab/mediacore/internal/signedurl"
	"github.com/swinglab/mediacore/internal/storage"
	"github.com/swinglab/mediacore/internal/thumbnail"
)

func newRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:          "mediactl",
		Short:        "Operate on stored media from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Init(logging.Config{Level: logLevel, Format: "console"})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newThumbnailCommand())
	rootCmd.AddCommand(newPlaceholderCommand())
	rootCmd.AddCommand(newSignCommand())
	rootCmd.AddCommand(newPutCommand())
	rootCmd.AddCommand(newRmCommand())
	return rootCmd
}

func newThumbnailCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "thumbnail <video>",
		Short: "Derive a thumbnail from a local video file",
		Long: "Runs the thumbnail fallback chain against a local video file. " +
			"When every attempt fails the placeholder image is written instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			video, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			deriver := thumbnail.New(thumbnail.Config{
				Extractor: &thumbnail.FFmpeg{Binary: cfg.FFmpegPath, Timeout: cfg.ThumbnailTimeout},
				TempDir:   cfg.ThumbnailTempDir,
			})
			if out == "" {
				out = media.ThumbnailKey(filepath.Base(args[0]))
			}
			jpeg := deriver.Generate(cmd.Context(), video, filepath.Base(args[0]))
			if err := os.WriteFile(out, jpeg, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", out, len(jpeg))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output path (default: <video>.jpg in the working directory)")
	return cmd
}

func newPlaceholderCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "placeholder",
		Short: "Write the placeholder thumbnail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jpeg := thumbnail.Placeholder()
			if err := os.WriteFile(out, jpeg, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", out, len(jpeg))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "placeholder.jpg", "Output path")
	return cmd
}

func newSignCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "sign <key|url>",
		Short: "Issue a read-only signed URL for a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if ttl == 0 {
				ttl = cfg.SignedURLTTL
			}
			store, closeStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			key, err := store.KeyFromURL(args[0])
			if err != nil {
				return err
			}
			grant, err := signedurl.NewIssuer(store.Backend()).Issue(cmd.Context(), key, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), grant.URL)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", grant.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Grant lifetime (default: SIGNED_URL_TTL)")
	return cmd
}

func newPutCommand() *cobra.Command {
	var (
		kind  string
		owner string
		exact string
	)
	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a local file",
		Long: "Uploads a video or image. Unique keys are derived from the upload time and --owner; " +
			"--exact stores an image under the given key, replacing any existing object. " +
			"Video uploads also derive and store the thumbnail.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mk, err := storage.ParseMediaKind(kind)
			if err != nil {
				return err
			}
			if exact != "" && mk == storage.Video {
				return errors.New("--exact is only supported for images")
			}
			if exact == "" && owner == "" {
				return errors.New("either --owner or --exact is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg := config.Load()
			store, closeStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			filename := filepath.Base(args[0])
			var obj *storage.StoredObject
			switch {
			case exact != "":
				obj, err = store.UploadImageExact(ctx, bytes.NewReader(data), int64(len(data)), exact)
			case mk == storage.Video:
				deriver := thumbnail.New(thumbnail.Config{
					Extractor: &thumbnail.FFmpeg{Binary: cfg.FFmpegPath, Timeout: cfg.ThumbnailTimeout},
					TempDir:   cfg.ThumbnailTempDir,
				})
				svc := media.NewService(store, deriver, nil, nil)
				var up *media.VideoUpload
				up, err = svc.UploadVideo(ctx, data, filename, owner)
				_ = svc.Close()
				if err == nil {
					obj = up.Video
					fmt.Fprintln(cmd.OutOrStdout(), up.ThumbnailURL)
				}
			default:
				obj, err = store.UploadImage(ctx, bytes.NewReader(data), int64(len(data)), filename, owner)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), obj.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "image", "Media kind (video or image)")
	cmd.Flags().StringVar(&owner, "owner", "", "Uploader identifier used in the object key")
	cmd.Flags().StringVar(&exact, "exact", "", "Store under this exact key")
	return cmd
}

func newRmCommand() *cobra.Command {
	var withThumbnail bool
	cmd := &cobra.Command{
		Use:   "rm <url|key>",
		Short: "Delete a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			store, closeStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := media.NewService(store, nil, nil, nil)
			res := svc.Delete(cmd.Context(), args[0], withThumbnail)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deleted: %t\n", res.Deleted)
			if res.ThumbnailDeleted != nil {
				fmt.Fprintf(out, "thumbnail deleted: %t\n", *res.ThumbnailDeleted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withThumbnail, "with-thumbnail", false, "Also delete the derived thumbnail")
	return cmd
}

// openStore builds the configured backend. The returned func closes it.
func openStore(cmd *cobra.Command, cfg *config.Config) (*storage.Service, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	backend, err := storage.NewBackendFromConfig(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("storage backend ready",
		zap.String("kind", string(backend.Kind())),
		zap.String("container", backend.Container()))
	return storage.NewService(backend), func() {
		if err := backend.Close(); err != nil {
			logging.Warn("storage backend close", zap.Error(err))
		}
	}, nil
}
