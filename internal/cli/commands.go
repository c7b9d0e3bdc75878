package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"stockadvisor/internal/cache"
	"stockadvisor/internal/config"

	"github.com/spf13/cobra"
)

// EnvConfigPath names the variable holding the config file location.
const EnvConfigPath = "ADVISOR_CONFIG"

const defaultConfigPath = "configs/config.yaml"

// NewRootCmd creates the advisorctl root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "advisorctl",
		Short:         "Maintenance and ad-hoc evaluation for the stock advisor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Configuration file path (default $"+EnvConfigPath+" or "+defaultConfigPath+")")

	root.AddCommand(newCacheCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newAdviseCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openCache(cmd *cobra.Command) (*cache.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.Cache.Path, cache.WithTTL(time.Duration(cfg.Cache.TTLDays)*24*time.Hour))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
