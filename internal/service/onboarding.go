package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Onboarding initialises newly signed-up accounts.
type Onboarding struct {
	provisioner port.AccountProvisioner
	logger      *zap.Logger
}

// NewOnboarding creates the onboarding service.
func NewOnboarding(provisioner port.AccountProvisioner, logger *zap.Logger) *Onboarding {
	return &Onboarding{provisioner: provisioner, logger: logger}
}

// Welcome creates the account record or merges the welcome defaults into an
// existing one. Repeating it is harmless.
func (o *Onboarding) Welcome(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Onboarding.Welcome")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return &domain.ErrValidation{Field: "accountId", Message: "must not be empty"}
	}

	if err := o.provisioner.UpsertAccount(ctx, accountID, domain.DefaultWelcome()); err != nil {
		o.logger.Error("welcome upsert failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return fmt.Errorf("welcome %s: %w", accountID, err)
	}

	o.logger.Info("account welcomed", zap.String("account_id", accountID))
	return nil
}
