package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/pdfrag/pkg/utils/json"
)

const redacted = "******"

var (
	envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

	// Pattern for ${VAR} or $VAR
	envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

	// 输出配置时需要隐藏的键名片段
	secretKeys = []string{"password", "api-key", "api_key", "secret", "token"}

	// flags that never come from the environment
	skipEnvFlags = map[string]bool{"config": true, "help": true, "version": true}
)

// EnvPrefix returns the environment variable prefix for an application name.
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// EnvKey returns the environment variable that overrides a flag.
func EnvKey(prefix, flagName string) string {
	return prefix + "_" + strings.ToUpper(envKeyReplacer.Replace(flagName))
}

// loadEnvFiles loads dotenv files that exist. Variables already present in the
// environment are not overridden.
func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file %s: %w", f, err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// loadConfig loads configuration from file, environment, and flags.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper
	configFile, _ := cmd.Flags().GetString("config")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars(v)

	prefix := EnvPrefix(a.name)
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// Capture changed flags to preserve precedence
	changed := map[string]func() error{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = snapshot(f)
		}
	})

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(cmd.Flags(), prefix); err != nil {
		return err
	}

	for name, restore := range changed {
		if err := restore(); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

// applyEnv sets every flag not given on the command line from its
// environment variable, if present.
func applyEnv(flags *pflag.FlagSet, prefix string) error {
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if firstErr != nil || f.Changed || skipEnvFlags[f.Name] {
			return
		}
		val, ok := os.LookupEnv(EnvKey(prefix, f.Name))
		if !ok {
			return
		}
		if err := setFlag(f, val); err != nil {
			firstErr = fmt.Errorf("invalid value %q for %s: %w", val, EnvKey(prefix, f.Name), err)
		}
	})
	return firstErr
}

func setFlag(f *pflag.Flag, val string) error {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		var items []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return sv.Replace(items)
	}
	return f.Value.Set(val)
}

// snapshot returns a function that restores the current flag value.
func snapshot(f *pflag.Flag) func() error {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		items := append([]string(nil), sv.GetSlice()...)
		return func() error { return sv.Replace(items) }
	}
	val := f.Value.String()
	return func() error { return f.Value.Set(val) }
}

// expandEnvVars expands ${VAR} and $VAR style environment variables in config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(strVal, func(match string) string {
			var varName string
			if strings.HasPrefix(match, "${") {
				varName = match[2 : len(match)-1]
			} else {
				varName = match[1:]
			}
			if envVal := os.Getenv(varName); envVal != "" {
				return envVal
			}
			return match // 保留原样，如果环境变量不存在
		})
		if expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// PrintConfig writes opts as YAML with secrets redacted.
func PrintConfig(w io.Writer, opts any) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	// JSON is valid YAML; decoding with yaml keeps integers as integers.
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	redact(tree)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return err
	}
	return enc.Close()
}

func redact(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			redact(val)
		case string:
			if val != "" && isSecretKey(k) {
				m[k] = redacted
			}
		}
	}
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// NewConfigCommand returns the "config" command group with a "print"
// subcommand dumping the effective options.
func NewConfigCommand(opts CliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return PrintConfig(cmd.OutOrStdout(), opts)
		},
	})
	return cmd
}
