package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"futures-risk-go/config"
	"futures-risk-go/risk"
)

type options struct {
	configPath string
	envFile    string
}

// NewRootCmd 构建 riskctl 命令树
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "riskctl",
		Short: "Futures risk administration tool",
		Long: `riskctl manages named risk configurations, inspects the risk audit log
and replays OHLC bars through the risk-checked engine.

Examples:
  riskctl config list
  riskctl config show conservative
  riskctl audit stats --file logs/risk_audit.jsonl
  riskctl backtest --bars data/rb.csv --symbol rb2501 --fast 5 --slow 20`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "application config file (empty for built-in defaults)")
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", ".env file, ignored when missing")

	root.AddCommand(newConfigCmd(opts), newAuditCmd(opts), newBacktestCmd(opts))
	return root
}

func (o *options) appConfig() (config.AppConfig, error) {
	return config.LoadWithEnvOverrides(o.configPath)
}

// riskConfigs 打开应用配置指向的命名风控配置文档
func (o *options) riskConfigs() (*risk.ConfigManager, config.AppConfig, error) {
	cfg, err := o.appConfig()
	if err != nil {
		return nil, cfg, err
	}
	return risk.NewConfigManager(cfg.Risk.ConfigFile, nil), cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
