package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/models"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

// Profile operations are remote-only: profile access is infrequent and
// assumed always-online, so no local mirror exists. Field values may be
// pre-encrypted by the caller layer; the engine is agnostic to that.

// SetProfile merge-upserts the given fields into the user's single profile
// document.
func (e *Engine) SetProfile(ctx context.Context, fields map[string]any) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}

	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["user_id"] = e.userID

	return e.profiles().UpdateOne(ctx, remote.Q{"user_id": e.userID}, remote.Set(merged), true)
}

// SetProfileFields is equivalent to SetProfile.
func (e *Engine) SetProfileFields(ctx context.Context, fields map[string]any) error {
	return e.SetProfile(ctx, fields)
}

// GetProfile fetches the current user's profile document. A missing document
// yields an empty profile, not an error.
func (e *Engine) GetProfile(ctx context.Context) (models.Profile, error) {
	return e.GetProfileBy(ctx, remote.Q{"user_id": e.userID})
}

// GetProfileBy fetches a single profile matching an arbitrary query.
func (e *Engine) GetProfileBy(ctx context.Context, query remote.Q) (models.Profile, error) {
	if err := e.awaitReady(ctx); err != nil {
		return nil, err
	}

	var p models.Profile
	err := e.profiles().FindOne(ctx, query, &p)
	if errors.Is(err, common.ErrorNotFound) {
		return models.Profile{}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfilesBy fetches all profiles matching an arbitrary query.
func (e *Engine) GetProfilesBy(ctx context.Context, query remote.Q) ([]models.Profile, error) {
	if err := e.awaitReady(ctx); err != nil {
		return nil, err
	}

	var ps []models.Profile
	if err := e.profiles().Find(ctx, query, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// RemoveField unsets a single field from the profile document without
// deleting the document itself.
func (e *Engine) RemoveField(ctx context.Context, fieldName string) error {
	if fieldName == "" {
		return fmt.Errorf("%w: field name is required", common.ErrorInvalidArgument)
	}
	if err := e.awaitReady(ctx); err != nil {
		return err
	}
	return e.profiles().UpdateOne(ctx, remote.Q{"user_id": e.userID}, remote.Unset(fieldName), false)
}

// DeleteProfile deletes the current user's profile document.
func (e *Engine) DeleteProfile(ctx context.Context) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}
	return e.profiles().DeleteOne(ctx, remote.Q{"user_id": e.userID})
}
