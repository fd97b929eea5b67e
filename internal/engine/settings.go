package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/models"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

// EncryptSettings serializes settings, encrypts the whole blob, and upserts
// it as the user's single settings record. Settings are remote-only: they
// are never mirrored into the local store.
func (e *Engine) EncryptSettings(ctx context.Context, settings any) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}

	encrypted, err := e.gate.EncryptJSON(settings)
	if err != nil {
		return fmt.Errorf("settings encryption failed: %w", err)
	}

	id := models.SettingsRecordID(e.userID)
	return e.feed().UpdateOne(ctx, remote.Q{"_id": id}, remote.Set(map[string]any{
		"user_id":     e.userID,
		"date":        time.Now().UnixMilli(),
		"record_type": models.RecordTypeSettings,
		"encrypted":   encrypted,
	}), true)
}

// DecryptSettings fetches and decrypts the settings blob into out. When no
// blob exists yet (first run), out is left at its zero value and no error is
// returned.
func (e *Engine) DecryptSettings(ctx context.Context, out any) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}

	var rec models.EncryptedFeedRecord
	err := e.feed().FindOne(ctx, remote.Q{"_id": models.SettingsRecordID(e.userID)}, &rec)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.gate.DecryptJSON(rec.Encrypted, out)
}
