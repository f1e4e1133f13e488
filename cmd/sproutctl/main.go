package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sproutd/pkg/config"
	"sproutd/pkg/db"
	"sproutd/pkg/s3"
	"sproutd/services/archiver"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sproutctl",
		Short:         "Administrative utility for a sproutd deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newEnrollCommand())
	cmd.AddCommand(newStatsCommand())
	cmd.AddCommand(newArchiveCommand())
	return cmd
}

func newEnrollCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Pre-enroll a node and print its device token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			nodeID := uuid.New()
			if name == "" {
				name = fmt.Sprintf("node-%s", nodeID)
			}
			now := time.Now().UTC()
			_, err = db.Exec(ctx, pool,
				`INSERT INTO nodes (id, name, note, status, data_archiving, created_at)
				 VALUES ($1, $2, '', 'unknown', '', $3)`,
				nodeID, name, now)
			if err != nil {
				return fmt.Errorf("enroll node: %w", err)
			}

			token := uuid.NewString()
			_, err = db.Exec(ctx, pool,
				`INSERT INTO node_tokens (id, node_id, token, created_at) VALUES ($1, $2, $3, $4)`,
				uuid.New(), nodeID, token, now)
			if err != nil {
				return fmt.Errorf("issue node token: %w", err)
			}

			fmt.Printf("nodeId: %s\ntoken:  %s\n", nodeID, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Node name (defaults to node-<id>)")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			return db.Migrate(ctx, pool)
		},
	}
}

// seedFile is the YAML shape accepted by `sproutctl seed`.
type seedFile struct {
	Users []struct {
		Username     string `yaml:"username"`
		Email        string `yaml:"email"`
		PasswordHash string `yaml:"passwordHash"`
		Nodes        []struct {
			Name string `yaml:"name"`
			Note string `yaml:"note"`
			Pots []struct {
				Name       string                    `yaml:"name"`
				Note       string                    `yaml:"note"`
				Thresholds map[string]map[string]any `yaml:"thresholds"`
			} `yaml:"pots"`
		} `yaml:"nodes"`
	} `yaml:"users"`
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, nodes and pots from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var seed seedFile
			if err := yaml.Unmarshal(raw, &seed); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}

			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			now := time.Now().UTC()
			for _, u := range seed.Users {
				userID := uuid.New()
				_, err := db.Exec(ctx, pool,
					`INSERT INTO users (id, username, email, password_hash, created_at)
					 VALUES ($1, $2, $3, $4, $5)
					 ON CONFLICT (email) DO NOTHING`,
					userID, u.Username, u.Email, u.PasswordHash, now)
				if err != nil {
					return fmt.Errorf("seed user %s: %w", u.Email, err)
				}

				for _, n := range u.Nodes {
					nodeID := uuid.New()
					_, err := db.Exec(ctx, pool,
						`INSERT INTO nodes (id, user_id, name, note, status, data_archiving, created_at)
						 VALUES ($1, $2, $3, $4, 'unknown', '', $5)`,
						nodeID, userID, n.Name, n.Note, now)
					if err != nil {
						return fmt.Errorf("seed node %s: %w", n.Name, err)
					}

					for _, p := range n.Pots {
						thresholds, err := yamlThresholdsJSON(p.Thresholds)
						if err != nil {
							return fmt.Errorf("seed pot %s: %w", p.Name, err)
						}
						_, err = db.Exec(ctx, pool,
							`INSERT INTO pots (id, node_id, name, note, status, reporting_time, thresholds, created_at)
							 VALUES ($1, $2, $3, $4, 'unknown', '', $5, $6)`,
							uuid.New(), nodeID, p.Name, p.Note, thresholds, now)
						if err != nil {
							return fmt.Errorf("seed pot %s: %w", p.Name, err)
						}
					}
				}
				log.Info().Str("email", u.Email).Int("nodes", len(u.Nodes)).Msg("seeded user")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the seed YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts for the core tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			var stats struct {
				Users          int64 `db:"users"`
				Nodes          int64 `db:"nodes"`
				Pots           int64 `db:"pots"`
				Measurements   int64 `db:"measurements"`
				ActiveWarnings int64 `db:"active_warnings"`
			}
			err = db.Get(ctx, pool, &stats, `
				SELECT
					(SELECT count(*) FROM users) AS users,
					(SELECT count(*) FROM nodes) AS nodes,
					(SELECT count(*) FROM pots) AS pots,
					(SELECT count(*) FROM measurements) AS measurements,
					(SELECT count(*) FROM warnings WHERE dismissed_at IS NULL) AS active_warnings`)
			if err != nil {
				return err
			}

			fmt.Printf("users:           %d\n", stats.Users)
			fmt.Printf("nodes:           %d\n", stats.Nodes)
			fmt.Printf("pots:            %d\n", stats.Pots)
			fmt.Printf("measurements:    %d\n", stats.Measurements)
			fmt.Printf("active warnings: %d\n", stats.ActiveWarnings)
			return nil
		},
	}
}

func newArchiveCommand() *cobra.Command {
	var presignKey string
	var presignTTL time.Duration

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Run one archive sweep, or presign a download for an archived object",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			s3c, err := s3.New(ctx, cfg.S3())
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}

			if presignKey != "" {
				url, err := s3c.PresignGet(ctx, cfg.ArchiveBucket, presignKey, presignTTL)
				if err != nil {
					return err
				}
				fmt.Println(url)
				return nil
			}

			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			arch, err := archiver.New(pool, s3c, nil, archiver.Config{
				Bucket:    cfg.ArchiveBucket,
				Retention: cfg.ArchiveRetention,
				Interval:  cfg.ArchiveInterval,
			}, log.Logger)
			if err != nil {
				return err
			}
			n, err := arch.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("archived %d measurements\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&presignKey, "presign", "", "Object key to presign instead of sweeping")
	cmd.Flags().DurationVar(&presignTTL, "presign-ttl", 15*time.Minute, "Lifetime of the presigned URL")
	return cmd
}

func yamlThresholdsJSON(t map[string]map[string]any) (string, error) {
	if len(t) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
