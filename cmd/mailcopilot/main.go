package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A .env in the working directory supplies OPENAI_API_KEY during
	// development; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
