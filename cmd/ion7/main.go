package main

import (
	"context"
	"log"
	"os"

	v1 "ion7/api/v1"
	apiauth "ion7/api/v1/auth"
	apibilling "ion7/api/v1/billing"
	apicron "ion7/api/v1/cron"
	apideploy "ion7/api/v1/deployments"
	apidomains "ion7/api/v1/domains"
	apiemails "ion7/api/v1/emails"
	apisites "ion7/api/v1/sites"
	apiwebhooks "ion7/api/v1/webhooks"
	"ion7/internal/auth"
	"ion7/internal/billing"
	"ion7/internal/cache"
	"ion7/internal/config"
	"ion7/internal/db"
	"ion7/internal/deploy"
	"ion7/internal/lifecycle"
	"ion7/internal/mailbox"
	"ion7/internal/mailer"
	"ion7/internal/planguard"
	"ion7/internal/plans"
	"ion7/internal/reconcile"
	"ion7/internal/registrar"
	"ion7/internal/sweep"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize MySQL
	gdb, err := db.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close(gdb)

	if cfg.Migrate {
		if err := db.Migrate(gdb); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
		log.Println("✓ Database migrated")
	}

	// 3. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 4. Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)

	// 5. Build external gateways
	reg := registrar.NewClient(cfg.OpenProvider.Username, cfg.OpenProvider.Password,
		cfg.OpenProvider.Handle, cfg.OpenProvider.Sandbox)
	zoho := mailbox.NewClient(cfg.Zoho.ClientID, cfg.Zoho.ClientSecret,
		cfg.Zoho.RefreshToken, cfg.Zoho.OrgID)
	stripeSvc := billing.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	ctx := context.Background()
	deployer, err := deploy.NewDeployer(ctx, cfg.AWS.Region, cfg.AWS.AccessKey,
		cfg.AWS.SecretKey, cfg.AWS.SitesBucket)
	if err != nil {
		log.Fatalf("Failed to initialize deployer: %v", err)
		os.Exit(1)
	}
	resetMailer, err := mailer.NewMailer(ctx, cfg.AWS.Region, cfg.AWS.AccessKey,
		cfg.AWS.SecretKey, cfg.AWS.SESFrom, cfg.AppOrigin)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
		os.Exit(1)
	}

	priceTable, err := plans.NewPriceTable(cfg.Stripe.Prices)
	if err != nil {
		log.Fatalf("Failed to build price table: %v", err)
		os.Exit(1)
	}

	// 6. Build domain services
	lifecycleSvc := lifecycle.NewService(gdb, reg, stripeSvc, cfg.AppOrigin)
	reconciler := reconcile.NewReconciler(gdb, reg, stripeSvc, deployer, zoho,
		&cache.Dedup{C: cache.Client}, priceTable)
	guard := planguard.NewGuard(gdb)
	renewalSweep := sweep.NewRenewalSweep(gdb, reg, cfg.RenewalSweep.WindowDays)
	transferSweep := sweep.NewTransferSweep(gdb, reg)

	// 7. Start background workers
	if cfg.RenewalSweep.Enabled {
		w := sweep.NewWorker("renewal-sweep", cfg.RenewalSweep.IntervalSec, func(ctx context.Context) error {
			_, err := renewalSweep.Run(ctx)
			return err
		})
		w.Start()
		defer w.Stop()
	}
	if cfg.TransferSweep.Enabled {
		w := sweep.NewWorker("transfer-sweep", cfg.TransferSweep.IntervalSec, func(ctx context.Context) error {
			_, err := transferSweep.Run(ctx)
			return err
		})
		w.Start()
		defer w.Stop()
	}

	// 8. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	handlers := &v1.Handlers{
		Auth:    apiauth.NewHandler(gdb, cfg, resetMailer),
		Domains: apidomains.NewHandler(gdb, lifecycleSvc, reg),
		Emails:  apiemails.NewHandler(gdb, zoho, reg),
		Sites:   apisites.NewHandler(gdb),
		Deploy:  apideploy.NewHandler(gdb, deployer, reg),
		Billing: apibilling.NewHandler(gdb, stripeSvc, guard, priceTable, cfg.AppOrigin),
		Webhook: apiwebhooks.NewHandler(stripeSvc, reconciler),
		Cron:    apicron.NewHandler(renewalSweep, transferSweep),
	}
	v1.SetupRouter(r, handlers, cfg.CronSecret)

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
