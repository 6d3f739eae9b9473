package main

import (
	"github.com/KaramelBytes/insighto-cli/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()
	cmd.Execute()
}
