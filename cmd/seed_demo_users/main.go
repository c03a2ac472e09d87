package main

import (
	"context"
	"fmt"

	"github.com/quecocinohoy/backend/config"
	"github.com/quecocinohoy/backend/internal/database"
	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

const demoPassword = "demopassword123"

type demoUser struct {
	name    string
	email   string
	premium bool
}

var demoUsers = []demoUser{
	{name: "Usuaria Gratis", email: "free@quecocinohoy.test"},
	{name: "Usuario Premium", email: "premium@quecocinohoy.test", premium: true},
}

// offlineGateway stands in for the payment processor so demo subscriptions go
// through the regular ledger path without a checkout.
type offlineGateway struct{}

func (offlineGateway) CreatePreapproval(_ context.Context, in gateway.CreatePreapprovalRequest) (*gateway.Preapproval, error) {
	return &gateway.Preapproval{
		ID:                "demo-" + in.ExternalReference,
		Status:            models.StatusPending,
		PayerEmail:        in.PayerEmail,
		ExternalReference: in.ExternalReference,
		Reason:            in.Reason,
	}, nil
}

func (offlineGateway) GetPreapproval(_ context.Context, id string) (*gateway.Preapproval, error) {
	return &gateway.Preapproval{ID: id, Status: models.StatusAuthorized}, nil
}

func (offlineGateway) CancelPreapproval(context.Context, string) error { return nil }

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L.Fatalw("failed to load configuration", "error", err)
	}
	if cfg.IsProduction() {
		logger.L.Fatalw("refusing to seed demo users in production")
	}

	log := logger.L.Named("seed")
	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}

	ctx := context.Background()
	auth := service.NewAuthService(db.DB, cfg.JWT.Secret, cfg.JWT.TTL, log)
	entitlements := service.NewEntitlementService(db.DB, nil, log)
	subscriptions := service.NewSubscriptionService(db.DB, offlineGateway{}, entitlements, cfg.App.FrontendURL, log)

	for _, u := range demoUsers {
		if err := seedUser(ctx, auth, subscriptions, entitlements, u); err != nil {
			log.Fatalw("failed to seed demo user", "email", u.email, "error", err)
		}
	}

	fmt.Println("Demo accounts:")
	for _, u := range demoUsers {
		plan := "free"
		if u.premium {
			plan = "premium"
		}
		fmt.Printf("  %-28s %-8s password: %s\n", u.email, plan, demoPassword)
	}
}

func seedUser(ctx context.Context, auth *service.AuthService, subs *service.SubscriptionService, ents *service.EntitlementService, u demoUser) error {
	user, err := auth.Register(ctx, types.RegisterRequest{Name: u.name, Email: u.email, Password: demoPassword})
	if ierr.IsValidation(err) {
		user, err = auth.Login(ctx, u.email, demoPassword)
	}
	if err != nil {
		return err
	}
	if !u.premium {
		return nil
	}

	premium, err := ents.IsPremium(ctx, user.ID)
	if err != nil || premium {
		return err
	}

	created, err := subs.CreateSubscription(ctx, user.ID, service.CreateSubscriptionInput{
		AccountEmail: user.Email,
		PlanType:     models.PlanMonthly,
	})
	if err != nil {
		return err
	}
	n := types.GatewayNotification{Type: gateway.NotificationTypePreapproval}
	n.Data.ID = created.SubscriptionID
	_, err = subs.HandleNotification(ctx, n)
	return err
}
