// Package cli は aihubmix-image コマンドを定義します。
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shouni/aihubmix-image-kit/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	apiKey     string

	app *App
}

// NewRootCmd はサブコマンドを登録したルートコマンドを返します。
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "aihubmix-image",
		Short: "aihubmix 経由で Gemini / Seedream の画像生成を行います",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app == nil {
				return nil
			}
			return opts.app.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML 設定ファイル")
	flags.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flags.StringVarP(&opts.apiKey, "key", "k", "", "API キー（未指定なら環境変数・保存済みキーを使用）")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newQuotaCmd(opts),
		newKeyCmd(opts),
		newPromptsCmd(),
		newServeCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	app, err := NewApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}
	o.app = app
	return nil
}

// Execute はルートコマンドを実行し、失敗時は終了コード 1 で終了します。
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
