package main

import (
	"context"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/config"
	"github.com/ariefcatur/pos-terminal/internal/terminal"
	"github.com/joho/godotenv"
	"os"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	fmt.Printf("POS terminal, server %s\n", cfg.APIURL)
	s := terminal.NewSession(terminal.NewClient(cfg.APIURL, 10*time.Second), cfg.Currency, os.Stdin, os.Stdout)
	if err := s.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
