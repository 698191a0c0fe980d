package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"teos_mining/internal/app"
	"teos_mining/internal/db"
	"teos_mining/internal/domain"
	"teos_mining/internal/events"
	"teos_mining/internal/logger"
	"teos_mining/internal/repository"
	"teos_mining/internal/store"
)

// seed_account creates (or reuses) a login, marks every civic step and
// prints a bearer token for manual testing.
func main() {
	email := flag.String("email", "tester@example.com", "account email")
	password := flag.String("password", "testpass123", "account password")
	verified := flag.Bool("verified", true, "complete all verification steps")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	secret := os.Getenv("JWT_SECRET")
	if dsn == "" || secret == "" {
		logger.Fatal("DATABASE_URL and JWT_SECRET must be set")
	}

	ctx := context.Background()
	pool := db.Connect(ctx, dsn, true)
	st := repository.NewStore(pool)
	defer st.Close()

	bus := events.NewMemoryBus()
	defer bus.Close()
	a := app.New(app.Deps{Store: st, Bus: bus, JWTSecret: secret})

	if _, err := a.Identity.SignUp(ctx, *email, *password, ""); err != nil && !errors.Is(err, store.ErrEmailTaken) {
		logger.Fatal("signup failed", "error", err)
	}
	res, err := a.Identity.SignIn(ctx, *email, *password)
	if err != nil {
		logger.Fatal("signin failed", "error", err)
	}

	sess, err := a.Accounts.LoadSession(ctx, res.Identity.ID, res.Token)
	if err != nil {
		logger.Fatal("load session failed", "error", err)
	}
	if *verified {
		for _, step := range domain.VerificationSteps {
			if _, err := a.Accounts.RecordVerificationStep(ctx, sess, domain.RecordVerificationStep{
				AccountID: sess.Account.ID,
				Step:      step,
			}); err != nil {
				logger.Fatal("verification step failed", "step", step, "error", err)
			}
		}
	}

	fmt.Printf("account_id=%s\nreferral_code=%s\ncivic_verified=%t\ntoken=%s\n",
		sess.Account.ID, sess.Account.ReferralCode, sess.Account.CivicVerified, res.Token)
}
