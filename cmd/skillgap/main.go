package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "skillgap",
	Short: "Skill gap analysis against target roles",
	Long: `skillgap compares a stored skill profile with a target role using a
language model and reports met, missing and weak skills, a readiness score and
an upskilling path.

Run "skillgap serve" to start the API server; the other commands talk to it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(frameworkCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	// A missing .env is fine; the environment and config backend still apply.
	_ = godotenv.Load()

	if !colorEnabled() {
		noColor = true
	}

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Fprintf(os.Stderr, "skillgap version %s\n", version)
}
