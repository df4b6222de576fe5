/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/golbm/parallel"
)

var (
	cfgFile  string
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "golbm",
	Short: "Parallel lattice Boltzmann domain decomposition and geometry preparation",
	Long: `
Decomposes a domain into cuboids, distributes them over ranks, prepares the
material geometry and runs lattice Boltzmann model problems on it.

golbm decompose -I input.yaml -r 4
golbm contactAngle -r 2 -s 1000`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("profile") {
			dir := viper.GetString("outputDir")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.Quiet)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.golbm.yaml)")
	rootCmd.PersistentFlags().IntP("ranks", "r", 1, "number of ranks, each runs in its own goroutine")
	rootCmd.PersistentFlags().StringP("outputDir", "o", "./tmp", "directory for checkpoints and profiles")
	rootCmd.PersistentFlags().StringP("logMode", "l", "normal", "logging: quiet, normal (rank 0 only) or debug (all ranks)")
	rootCmd.PersistentFlags().Bool("profile", false, "write a CPU profile into the output directory")
	for _, name := range []string{"ranks", "outputDir", "logMode", "profile"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".golbm" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".golbm")
	}
	viper.SetEnvPrefix("golbm")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func parseLogMode(mode string) (lm parallel.LogMode, err error) {
	switch strings.ToLower(mode) {
	case "quiet":
		lm = parallel.Quiet
	case "normal", "":
		lm = parallel.Normal
	case "debug":
		lm = parallel.Debug
	default:
		err = fmt.Errorf("unknown log mode %q", mode)
	}
	return
}

// runOptions collects the rank count and runtime options shared by all commands
func runOptions() (np int, opts parallel.Options, err error) {
	np = viper.GetInt("ranks")
	if np < 1 {
		err = fmt.Errorf("need at least one rank, have %d", np)
		return
	}
	opts.OutputDir = viper.GetString("outputDir")
	opts.LogMode, err = parseLogMode(viper.GetString("logMode"))
	return
}
