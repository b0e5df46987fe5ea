package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/bcr-index/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "bcrx",
		Short: "Index and manage BCR call recordings",
		Long: `bcrx keeps an index of the call recordings in a recordings directory.
The index lives next to the recordings in .bcr-gui-database.json and is
reconciled with the directory on every refresh. Recordings can be listed,
deleted together with their metadata files and watched for changes.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/bcrx.yaml)")
	rootCmd.PersistentFlags().StringP("directory", "d", "", "recordings directory (overrides the saved selection)")
	rootCmd.PersistentFlags().String("backend", "fs", "storage backend: fs or s3")
	rootCmd.PersistentFlags().String("history-db", "", "pass history database (default in the user config dir)")
	rootCmd.PersistentFlags().String("artifacts", "", "directory for JSONL event logs (disabled when empty)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("directory", rootCmd.PersistentFlags().Lookup("directory"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("history_db", rootCmd.PersistentFlags().Lookup("history-db"))
	viper.BindPFlag("artifacts", rootCmd.PersistentFlags().Lookup("artifacts"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	// Ignore error if .env doesn't exist
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("bcrx")
		viper.SetConfigType("yaml")
	}

	setDefaults(viper.GetViper(), Config{}, "")

	// Read in environment variables that match (BCRX_S3_ENDPOINT -> s3.endpoint)
	viper.SetEnvPrefix("BCRX")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
