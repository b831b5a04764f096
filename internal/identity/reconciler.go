package identity

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/radiotag/service-provider/internal/auth"
)

// ErrInvalidClientID indicates the authorization provider reported an
// authorized token without a client identifier.
var ErrInvalidClientID = errors.New("identity: missing client id")

// ReconcilerConfig describes the dependencies required for identity
// reconciliation.
type ReconcilerConfig struct {
	Database *gorm.DB
}

// Reconciler maintains the local Client and User records mirroring what the
// authorization provider reports for verified tokens.
type Reconciler struct {
	db *gorm.DB
}

// NewReconciler constructs the reconciler.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("identity: database connection required")
	}
	return &Reconciler{db: cfg.Database}, nil
}

// Reconcile creates or updates the Client and User records for a verified
// identity inside a single transaction. The returned user is nil when the
// provider reported no user for the token. Any failure rolls the whole
// transaction back; no partial writes become visible.
//
// Concurrent requests may race to create the same client or user id, so both
// find-or-create steps are insert-on-conflict upserts followed by a re-fetch,
// never check-then-insert.
func (r *Reconciler) Reconcile(ctx context.Context, info auth.ClientInfo) (Client, *User, error) {
	var (
		client Client
		user   *User
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if info.UserID != "" {
			resolved, err := reconcileUser(tx, info)
			if err != nil {
				return err
			}
			user = resolved
		}

		if info.ClientID == "" {
			// Aborts the transaction, discarding any user write above.
			return ErrInvalidClientID
		}

		resolved, err := reconcileClient(tx, info.ClientID, user)
		if err != nil {
			return err
		}
		client = resolved
		return nil
	})
	if err != nil {
		return Client{}, nil, err
	}

	return client, user, nil
}

func reconcileUser(tx *gorm.DB, info auth.ClientInfo) (*User, error) {
	user := User{ID: info.UserID, DisplayName: info.UserDisplayName}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("id = ?", info.UserID).First(&user).Error; err != nil {
		return nil, err
	}

	if user.DisplayName != info.UserDisplayName {
		user.DisplayName = info.UserDisplayName
		if err := tx.Model(&User{}).
			Where("id = ?", user.ID).
			Update("display_name", info.UserDisplayName).Error; err != nil {
			return nil, err
		}
	}

	return &user, nil
}

func reconcileClient(tx *gorm.DB, clientID string, user *User) (Client, error) {
	client := Client{ID: clientID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&client).Error; err != nil {
		return Client{}, err
	}
	if err := tx.Where("id = ?", clientID).First(&client).Error; err != nil {
		return Client{}, err
	}

	if user != nil && (client.UserID == nil || *client.UserID != user.ID) {
		client.UserID = &user.ID
		if err := tx.Model(&Client{}).
			Where("id = ?", client.ID).
			Update("user_id", user.ID).Error; err != nil {
			return Client{}, err
		}
	}

	return client, nil
}
