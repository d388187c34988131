package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobpulse/notifier/internal/pipeline"
)

const (
	app = "notifier"
)

type Config struct {
	StorePath string           `mapstructure:"store-path"`
	Analytics *AnalyticsConfig `mapstructure:"analytics"`
	Profiles  *ProfilesConfig  `mapstructure:"profiles"`
	Pipeline  *PipelineConfig  `mapstructure:"pipeline"`
	Schedule  *ScheduleConfig  `mapstructure:"schedule"`
}

type AnalyticsConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
}

type ProfilesConfig struct {
	APIURL       string `mapstructure:"api-url"`
	AuthURL      string `mapstructure:"auth-url"`
	Email        string `mapstructure:"email"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
}

type PipelineConfig struct {
	DaysBack            int  `mapstructure:"days-back"`
	MaxSkills           int  `mapstructure:"max-skills"`
	NotifyFirstSighting bool `mapstructure:"notify-first-sighting"`
}

type ScheduleConfig struct {
	Offers       string `mapstructure:"offers"`
	Postulations string `mapstructure:"postulations"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "notifier matches job offers to user profiles and notifies companies about new applications",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("analytics.dsn-file", "NOTIFIER_ANALYTICS_DSN_FILE"); err != nil {
		log.Fatalf("binding NOTIFIER_ANALYTICS_DSN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("profiles.password-file", "NOTIFIER_PROFILES_PASSWORD_FILE"); err != nil {
		log.Fatalf("binding NOTIFIER_PROFILES_PASSWORD_FILE environment variable: %v", err)
	}

	viper.SetDefault("store-path", app+".db")
	viper.SetDefault("pipeline.days-back", 7)
	viper.SetDefault("pipeline.max-skills", pipeline.DefaultMaxSkills)
	viper.SetDefault("schedule.offers", "@hourly")
	viper.SetDefault("schedule.postulations", "@every 30m")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is notifier.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only the version command runs without configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
