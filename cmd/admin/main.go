// Package main is the operator CLI: bootstrap admins and change roles.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cosmicconnect/backend/config"
	"github.com/cosmicconnect/backend/internal/auth"
	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/realtime"
	"github.com/cosmicconnect/backend/internal/users"
	"github.com/cosmicconnect/backend/pkg/database"
	"github.com/cosmicconnect/backend/pkg/redis"
)

var (
	email    string
	password string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operator tools for the volunteer coordination backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// createAdminCmd provisions a pre-verified admin account.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a verified admin account",
	Long: `Create an admin account. Self-registration only offers the volunteer and
coordinator roles, so the first admin has to be created here.`,
	RunE: runCreateAdmin,
}

// setRoleCmd changes a user's role and drops their live sessions.
var setRoleCmd = &cobra.Command{
	Use:   "set-role <email> <volunteer|coordinator|admin>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetRole,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	createAdminCmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	createAdminCmd.Flags().StringVar(&password, "password", "", "admin password, at least 6 characters (required)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd, setRoleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type deps struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func open(ctx context.Context) (*deps, func(), error) {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return &deps{cfg: cfg, pool: pool, logger: logger}, func() {
		pool.Close()
		_ = logger.Sync()
	}, nil
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	d, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	svc := auth.NewService(auth.NewRepository(d.pool), users.NewRepository(d.pool), nil, nil, nil, auth.Options{}, d.logger)
	u, err := svc.Provision(ctx, email, password, models.RoleAdmin, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.UID)
	return nil
}

func runSetRole(cmd *cobra.Command, args []string) error {
	role, ok := models.ParseRole(args[1])
	if !ok {
		return fmt.Errorf("unknown role %q", args[1])
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	d, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	cred, err := auth.NewRepository(d.pool).GetCredentialByEmail(ctx, auth.NormalizeEmail(args[0]))
	if err != nil {
		return fmt.Errorf("look up %s: %w", args[0], err)
	}
	u, err := users.NewRepository(d.pool).UpdateRole(ctx, cred.ID, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	// Live connections on any server instance re-resolve and drop if the role no longer matches.
	rdb, err := redis.NewClient(ctx, d.cfg.Redis.Addr, d.cfg.Redis.Password, d.cfg.Redis.DB, d.logger)
	if err != nil {
		d.logger.Warn("redis unavailable, live sessions not revalidated", zap.Error(err))
	} else {
		defer rdb.Close()
		bridge := realtime.NewRedisPubSub(rdb.Client, d.logger)
		realtime.NewHub(nil, bridge, nil, d.logger).RevalidateUser(ctx, u.UID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, u.Role)
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, _ := config.Build()
	return logger
}
