// Command seed loads the default plan catalogue and prints a short-lived
// admin token for local development.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app"
	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/pkg/jwtauth"
	"github.com/fatflowers/streambox/pkg/types"
)

func main() {
	adminID := pflag.String("admin-id", "admin", "subject of the issued admin token")
	adminEmail := pflag.String("admin-email", "admin@streambox.local", "email claim of the issued admin token")
	ttl := pflag.Duration("ttl", 24*time.Hour, "token lifetime; 0 skips issuing a token")
	pflag.Parse()

	a := fx.New(
		app.Infra,
		catalog.Module,
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, log *zap.SugaredLogger, plans *catalog.Service, tokens *jwtauth.Service) {
			lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
				n, err := plans.Seed(ctx, catalog.DefaultPlans())
				if err != nil {
					return err
				}
				log.Infow("plans seeded", "created", n)
				if *ttl > 0 {
					tok, err := tokens.Issue(*adminID, string(types.UserRoleAdmin), *adminEmail, "admin", *ttl)
					if err != nil {
						return err
					}
					fmt.Println(tok)
				}
				return sd.Shutdown()
			}})
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		zap.NewExample().Sugar().Errorf("seed failed: %v", err)
		os.Exit(1)
	}
	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	_ = a.Stop(stopCtx)
}
