// Package app 基于 cobra/viper/pflag 组装命令行应用。
//
// 配置优先级从高到低：命令行参数、环境变量（{NAME}_SECTION_KEY）、
// 配置文件、默认值。工作目录下的 .env 会在一切之前载入环境变量。
//
//	a := app.NewApp(
//	    app.WithName("pdfrag"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	    app.WithCommands(ingestCmd, queryCmd),
//	)
//	a.Run()
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunFunc 根命令在没有子命令时执行的函数。
type RunFunc func() error

// App 一个可执行程序：根命令、选项以及共享的配置加载流程。
type App struct {
	name     string
	short    string
	long     string
	options  CliOptions
	run      RunFunc
	subs     []*cobra.Command
	envFiles []string

	silence   bool
	noVersion bool

	cmd   *cobra.Command
	viper *viper.Viper
}

// Option 配置 App。
type Option func(*App)

// WithName 设置程序名，同时决定配置文件名与环境变量前缀。
func WithName(name string) Option { return func(a *App) { a.name = name } }

// WithShortDescription 设置简短说明。
func WithShortDescription(desc string) Option { return func(a *App) { a.short = desc } }

// WithDescription 设置详细说明。
func WithDescription(desc string) Option { return func(a *App) { a.long = desc } }

// WithOptions 设置命令行选项，其 flag 对所有子命令可见。
func WithOptions(opts CliOptions) Option { return func(a *App) { a.options = opts } }

// WithRunFunc 设置根命令的执行函数。
func WithRunFunc(run RunFunc) Option { return func(a *App) { a.run = run } }

// WithCommands 添加子命令。子命令共享根命令的配置加载与校验流程。
func WithCommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.subs = append(a.subs, cmds...) }
}

// WithEnvFiles 替换默认的 dotenv 文件列表（".env"），不传参数表示不加载。
func WithEnvFiles(files ...string) Option { return func(a *App) { a.envFiles = files } }

// WithSilence 不打印错误信息。
func WithSilence() Option { return func(a *App) { a.silence = true } }

// WithNoVersion 不注册 --version。
func WithNoVersion() Option { return func(a *App) { a.noVersion = true } }

// NewApp 创建应用并构建根命令。
func NewApp(opts ...Option) *App {
	a := &App{
		name:     filepath.Base(os.Args[0]),
		envFiles: []string{".env"},
		viper:    viper.New(),
	}
	for _, o := range opts {
		o(a)
	}

	a.cmd = &cobra.Command{
		Use:               a.name,
		Short:             a.short,
		Long:              a.long,
		SilenceUsage:      true,
		SilenceErrors:     a.silence,
		PersistentPreRunE: a.prepare,
		RunE: func(*cobra.Command, []string) error {
			if a.run == nil {
				return nil
			}
			return a.run()
		},
	}
	a.cmd.SetOut(os.Stdout)
	a.cmd.SetErr(os.Stderr)

	pfs := a.cmd.PersistentFlags()
	pfs.StringP("config", "c", "", "Path to config file")
	if !a.noVersion {
		version.AddFlags(pfs)
	}
	if a.options != nil {
		fss := a.options.Flags()
		fss.AddTo(pfs)
	}
	a.cmd.AddCommand(a.subs...)
	return a
}

// prepare 在任意命令执行前加载配置并完成、校验选项。
func (a *App) prepare(cmd *cobra.Command, _ []string) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}
	if err := loadEnvFiles(a.envFiles...); err != nil {
		return err
	}
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	if a.options == nil {
		return nil
	}
	if err := a.options.Complete(); err != nil {
		return err
	}
	return a.options.Validate()
}

// Run 执行应用，出错时以状态码 1 退出。
func (a *App) Run() {
	if err := a.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Execute 执行根命令。
func (a *App) Execute() error { return a.cmd.Execute() }

// Command 返回根命令，测试中用于设置参数。
func (a *App) Command() *cobra.Command { return a.cmd }

// GetVersion 返回构建时注入的 git 版本。
func GetVersion() string {
	return version.Get().GitVersion
}
