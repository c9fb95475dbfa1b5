package cmd

import (
	"encoding/csv"
	"fmt"
	log2 "log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/rest"
	"github.com/mangoautomation/dashboard-data-apis/settings"
)

// Environment variables prefixed with "MANGO_" can override settings e.g. "MANGO_URL"
const envVarPrefix = "mango"

// row is a collection item of any type, the CLI only prints and forwards them.
type row = map[string]interface{}

var cfgFile string
var logger log.Logger

var rootCmd = &cobra.Command{
	Use:           "mango-data",
	Short:         "Query, bulk edit and watch Mango REST collections",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected by the arguments.
func Execute() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&cfgFile, "config", "c", "", "config file")
	flags.StringP("url", "u", "http://localhost:8080", "base URL of the Mango instance")
	flags.String("token", "", "Mango bearer token")
	flags.String("user", "", "user the persisted table settings belong to")
	flags.Int("page-size", config.DefaultPageSize, "number of rows per page")
	flags.Duration("bulk-poll-interval", config.DefaultBulkPollInterval, "interval between bulk task status requests")
	flags.Duration("bulk-timeout", config.DefaultBulkTimeout, "time after which a running bulk task is given up on")
	flags.StringSlice("bulk-actions", []string{"CREATE", "UPDATE", "DELETE"}, "bulk actions that may be submitted")
	flags.String("settings-db", "", "sqlite database for table settings, settings are kept in files when empty")
	flags.String("settings-dir", defaultSettingsDir(), "directory of the table settings files")
	flags.Bool("verbose", false, "log every request")
	flags.Bool("no-color", false, "disable colored output")

	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Name != "config" {
			_ = viper.BindPFlag(flag.Name, flags.Lookup(flag.Name))
		}
	})

	rootCmd.AddCommand(listCmd(), bulkCmd(), watchCmd())

	cobra.OnInitialize(initialize)

	viper.SetEnvPrefix(envVarPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initialize() {
	var zapLogger *zap.Logger
	var err error
	if viper.GetBool("verbose") {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
	}
	if err != nil {
		log2.Fatalf("unable to initialize logger: %v", err)
	}
	logger = log.NewZapLogger(zapLogger)

	if viper.GetBool("no-color") {
		color.NoColor = true
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err == nil {
			logger.Info("using config file",
				"file", viper.ConfigFileUsed())
		}
	}
}

func createConfig() (*config.ClientConfig, error) {
	actionNames := getStringSlice("bulk-actions")
	actions, err := config.ParseActions(actionNames...)
	if err != nil {
		return nil, fmt.Errorf("invalid bulk actions %v: %w", actionNames, err)
	}

	user := viper.GetString("user")
	if user == "" {
		user = os.Getenv("USER")
	}

	return config.NewClientConfigWithLogger(logger, viper.GetString("url")).
		WithUser(user).
		WithPageSize(viper.GetInt("page-size")).
		WithBulkPollInterval(viper.GetDuration("bulk-poll-interval")).
		WithBulkTimeout(viper.GetDuration("bulk-timeout")).
		WithSupportedActions(actions), nil
}

func createClient(cfg config.Config, collection string) *rest.Client[row] {
	var opts []rest.Option
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, rest.WithToken(token))
	}
	return rest.NewClient[row](cfg, collection, opts...)
}

func createStore(cfg config.Config) (settings.Store, error) {
	if path := viper.GetString("settings-db"); path != "" {
		db, err := settings.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open settings database: %w", err)
		}
		return settings.NewGormStore(db, cfg.User())
	}
	return settings.NewFileStore(viper.GetString("settings-dir"), cfg.User())
}

// consoleNotifier prints notifications to stderr, colored by level.
func consoleNotifier() notify.Notifier {
	return notify.NotifierFunc(func(n notify.Notification) {
		c := color.New(color.FgGreen)
		switch n.Level {
		case notify.Warning:
			c = color.New(color.FgYellow)
		case notify.Error:
			c = color.New(color.FgRed)
		}
		c.Fprintln(os.Stderr, n.String())
	})
}

func defaultSettingsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mango-data")
}

func getStringSlice(key string) []string {
	value := viper.GetStringSlice(key)
	slice, err := toStringSlice(value)
	if err != nil {
		logger.Fatal("invalid string slice value for setting",
			"error", err,
			"key", key,
			"value", value)
	}
	return slice
}

func toStringSlice(slice []string) ([]string, error) {
	result := make([]string, 0)
	for _, entry := range slice {
		stringReader := strings.NewReader(entry)
		csvReader := csv.NewReader(stringReader)
		split, err := csvReader.Read()
		if err != nil {
			return nil, err
		}
		for _, part := range split {
			if part != "" { // Don't add empty values
				result = append(result, part)
			}
		}
	}
	return result, nil
}
