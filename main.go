// docqa answers questions about uploaded PDF documents.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"docqa/internal/cli"
)

func main() {
	// provider keys usually live in .env; a missing file is fine
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
