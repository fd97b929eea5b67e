// Package models defines the record types shared by the local store, the
// sync engine, and the remote mirror.
package models

import "strings"

// Lifecycle tags that remove an item from the visible feed without deleting it.
const (
	StatusDeleted   = "deleted"
	StatusCancelled = "cancelled"
	StatusCanceled  = "canceled"
)

// FeedItem is the locally canonical feed record. The local copy is the source
// of truth; the remote copy is an encrypted mirror, eventually consistent.
type FeedItem struct {
	Id         string `json:"_id"`
	Date       int64  `json:"date"` // unix milliseconds, feed sort key
	Status     string `json:"status,omitempty"`
	OtplStatus string `json:"otplStatus,omitempty"`
	TxHash     string `json:"txHash,omitempty"`
	PaymentID  string `json:"paymentId,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Note       string `json:"note,omitempty"`

	// Sync is true once the item has been successfully mirrored to the
	// remote store. False means a pending or failed push that the next
	// reconciliation pass retries.
	Sync bool `json:"sync"`
}

// Hidden reports whether the item must be excluded from feed pages.
func (f *FeedItem) Hidden() bool {
	return hiddenStatus(f.Status) || hiddenStatus(f.OtplStatus)
}

func hiddenStatus(s string) bool {
	switch s {
	case StatusDeleted, StatusCancelled, StatusCanceled:
		return true
	}
	return false
}

// SyncEligible reports whether the item may have a remote mirror: it needs a
// txHash (the mirror key is derived from it) and must not collide with the
// settings record id shape.
func (f *FeedItem) SyncEligible() bool {
	return f.TxHash != "" && !strings.Contains(f.Id, SettingsMarker)
}
