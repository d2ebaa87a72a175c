package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shouni/aihubmix-image-kit/internal/fsio"
	"github.com/shouni/aihubmix-image-kit/internal/server"
	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/prompts"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	prompt      string
	template    int
	mode        string
	model       string
	aspectRatio string
	resolution  string
	maxImages   int
	images      []string
	output      string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{template: -1}

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "画像を1回生成します",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.prompt == "" && len(args) > 0 {
				opts.prompt = strings.Join(args, " ")
			}
			return runGenerate(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.prompt, "prompt", "p", "", "プロンプト")
	f.IntVarP(&opts.template, "template", "t", -1, "組み込みテンプレート番号（prompts で一覧表示）")
	f.StringVarP(&opts.mode, "mode", "m", string(domain.ModeText), "text | img2img | multi")
	f.StringVar(&opts.model, "model", domain.DefaultProviderModel, "モデルID（gemini* / doubao*）")
	f.StringVar(&opts.aspectRatio, "aspect-ratio", "", "アスペクト比（Gemini 系のみ）")
	f.StringVarP(&opts.resolution, "resolution", "r", string(domain.DefaultResolution), "1K | 2K | 4K")
	f.IntVar(&opts.maxImages, "max-images", 0, "multi モードの最大枚数（既定 4, Seedream 系のみ）")
	f.StringSliceVarP(&opts.images, "image", "i", nil, "参照画像（ファイル, ディレクトリ, http(s) URL）")
	f.StringVarP(&opts.output, "output", "o", "", "生成画像の保存先")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	app := root.app
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	prompt := strings.TrimSpace(opts.prompt)
	if prompt == "" && opts.template >= 0 {
		tpl, err := prompts.Get(opts.template)
		if err != nil {
			return err
		}
		prompt = tpl.Text()
	}

	mode, err := domain.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	resolution, err := domain.ParseResolution(opts.resolution)
	if err != nil {
		return err
	}
	refs, err := expandImages(cmd, app, opts.images)
	if err != nil {
		return err
	}
	key, err := app.ResolveKey(root.apiKey)
	if err != nil {
		return err
	}

	req := domain.GenerationRequest{
		Prompt:          prompt,
		Mode:            mode,
		ProviderModel:   opts.model,
		AspectRatio:     opts.aspectRatio,
		Resolution:      resolution,
		ReferenceImages: refs,
		MaxImages:       opts.maxImages,
	}

	result, err := app.Adapter.Generate(ctx, key, req)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	app.Gallery.Add(*result)

	fmt.Fprintf(out, "生成完了: %s\n", result.ID)
	if result.Locator.Kind == domain.LocatorURL {
		fmt.Fprintf(out, "URL: %s\n", result.Locator.Value)
	} else {
		fmt.Fprintln(out, "画像: data URI")
	}
	if v, ok := result.ScaledUsage(app.Quota.Multiplier()); ok {
		fmt.Fprintf(out, "usage: %s\n", formatFloat(v))
	}

	if opts.output != "" {
		data, _, err := app.Core.FetchResult(ctx, result.Locator)
		if err != nil {
			app.Adapter.Wait()
			return err
		}
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			app.Adapter.Wait()
			return fmt.Errorf("保存に失敗しました: %w", err)
		}
		fmt.Fprintf(out, "保存しました: %s\n", opts.output)
	}

	app.Adapter.Wait()
	if reading, err := app.LastQuota(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "残量: %s\n", domain.UserMessage(err))
	} else if reading != nil {
		fmt.Fprintf(out, "残量: %s\n", reading.String())
	}
	return nil
}

// expandImages はディレクトリ指定（ローカル、または末尾が / の gs://）を直下の画像ファイルに展開します。
// 順序は指定順、ディレクトリ内は名前順です。
func expandImages(cmd *cobra.Command, app *App, sources []string) ([]domain.ReferenceImage, error) {
	var refs []domain.ReferenceImage
	for _, src := range sources {
		if isDir(src) {
			paths, err := fsio.ListImages(cmd.Context(), app.Reader, src)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				refs = append(refs, domain.ReferenceImage{Name: filepath.Base(p), Source: p})
			}
			continue
		}
		refs = append(refs, domain.ReferenceImage{Name: filepath.Base(src), Source: src})
	}
	return refs, nil
}

func isDir(src string) bool {
	if fsio.IsRemoteDir(src) {
		return true
	}
	info, err := os.Stat(src)
	return err == nil && info.IsDir()
}

func newQuotaCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "残量を照会します",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := root.app
			key, err := app.ResolveKey(root.apiKey)
			if err != nil {
				return err
			}
			reading, err := app.FetchQuota(cmd.Context(), key)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "残量: %s\n", reading.String())
			return nil
		},
	}
}

func newKeyCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "API キーを管理します",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "save <key>",
			Short: "API キーを保存し、残量を照会します",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := root.app
				key := strings.TrimSpace(args[0])
				if err := app.Keys.Save(key); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "保存しました")

				reading, err := app.FetchQuota(cmd.Context(), key)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "残量: %s\n", domain.UserMessage(err))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "残量: %s\n", reading.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "保存済みの API キーを削除します",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := root.app.Keys.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "クリアしました")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "保存済みの API キーの有無と保存先を表示します",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := root.app.Keys.Load()
				if err != nil {
					return err
				}
				state := "未保存"
				if key != "" {
					state = "保存済み"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", state, root.app.Keys.Path())
				return nil
			},
		},
	)
	return cmd
}

func newPromptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "組み込みのプロンプトテンプレートを表示します",
		Args:  cobra.NoArgs,
		// 設定読み込みは不要
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, tpl := range prompts.All() {
				fmt.Fprintf(out, "[%d] %s (%s)\n    %s\n", i, tpl.Title, tpl.Tag, tpl.Body)
			}
			return nil
		},
	}
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "JSON API サーバーを起動します",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := root.app
			if addr == "" {
				addr = app.Config.ListenAddr
			}

			srv, err := server.New(server.Deps{
				Generator:  app.Adapter,
				Results:    app.Core,
				Quota:      app.Quota,
				Keys:       app.Keys,
				Gallery:    app.Gallery,
				Metrics:    app.Metrics,
				Multiplier: app.Quota.Multiplier(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
			err = srv.Serve(ctx, addr)
			app.Adapter.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "待ち受けアドレス（既定は設定の listen_addr）")
	return cmd
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
