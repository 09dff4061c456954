// auth serves the wallet token and identity endpoints. All settings come
// from the WALLET_AUTH_* environment, see app.LoadConfig.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/walletauth/internal/auth/app"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Println(app.BuildVersion)
		return
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize wallet auth service", slog.Any("err", err))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("wallet auth service stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
