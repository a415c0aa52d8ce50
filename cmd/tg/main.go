package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/taskgraph/internal/api"
	"github.com/zulandar/taskgraph/internal/config"
	"github.com/zulandar/taskgraph/internal/db"
	"github.com/zulandar/taskgraph/internal/log"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "taskgraph.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tg",
		Short: "taskgraph — task dependency and critical path engine",
		Long: `taskgraph tracks dependencies between project tasks, rejects cycles,
computes the critical path and reports schedule risk.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to taskgraph config file")
	cmd.PersistentFlags().String("db", "", "sqlite database path (overrides the config file)")
	cmd.PersistentFlags().Bool("json", false, "output JSON")
	bindFlags(cmd)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newDepCmd())
	cmd.AddCommand(newPathCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRiskCmd())
	cmd.AddCommand(newOptimizeCmd())
	cmd.AddCommand(newReadyCmd())
	cmd.AddCommand(newBlockedCmd())
	cmd.AddCommand(newConnectedCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// bindFlags exposes the persistent flags through viper so they can also be
// set as TASKGRAPH_CONFIG, TASKGRAPH_DB and TASKGRAPH_JSON.
func bindFlags(cmd *cobra.Command) {
	viper.SetEnvPrefix("TASKGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"config", "db", "json"} {
		_ = viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tg %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadConfig reads the configured file. A missing file at the default path
// falls back to the built-in defaults; an explicitly named one is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := viper.GetString("config")
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") && path == defaultConfigPath {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p := viper.GetString("db"); p != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = p
	}
	log.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func connectFromConfig(cmd *cobra.Command) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

// servicesFromConfig opens the database and wires the engine under the
// configured policy.
func servicesFromConfig(cmd *cobra.Command) (*config.Config, *api.Services, error) {
	cfg, gormDB, err := connectFromConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, api.NewServices(gormDB, cfg.Policy), nil
}

// render writes v as JSON when --json is set, otherwise the table built by fill.
func render(cmd *cobra.Command, v interface{}, fill func(t table.Writer)) error {
	out := cmd.OutOrStdout()
	if viper.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	fill(t)
	t.Render()
	return nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
