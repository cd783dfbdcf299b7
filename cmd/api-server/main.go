package main

import (
	"context"
	_ "time/tzdata"

	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appkg "github.com/xenking/nuestra-carne/internal/app"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		return appkg.Run(ctx, lg, m, cfg)
	})
}
