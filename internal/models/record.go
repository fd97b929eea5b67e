package models

// SettingsMarker is the id fragment that distinguishes the settings blob from
// feed mirrors inside the shared remote collection.
const SettingsMarker = "settings"

// Record type discriminants. Older clients wrote records without the
// record_type field, so readers must keep filtering on id shape as well.
const (
	RecordTypeFeed     = "feed"
	RecordTypeSettings = "settings"
)

// EncryptedFeedRecord is a document in the remote encrypted_feed collection:
// either the mirror of one FeedItem (keyed <txHash>_<userID>) or the user's
// single settings blob (keyed <userID>_settings).
type EncryptedFeedRecord struct {
	ID         string `bson:"_id" json:"_id"`
	UserID     string `bson:"user_id" json:"user_id"`
	TxHash     string `bson:"txHash,omitempty" json:"txHash,omitempty"`
	Date       int64  `bson:"date" json:"date"`
	RecordType string `bson:"record_type,omitempty" json:"record_type,omitempty"`

	// Encrypted is the base64 ciphertext of the JSON-serialized plaintext.
	Encrypted string `bson:"encrypted" json:"encrypted"`
}

// FeedRecordID builds the mirror key for a feed item.
func FeedRecordID(txHash, userID string) string {
	return txHash + "_" + userID
}

// SettingsRecordID builds the key of the user's settings blob.
func SettingsRecordID(userID string) string {
	return userID + "_" + SettingsMarker
}

// Profile is the flat per-user profile document stored remotely. Fields may
// be pre-encrypted by the caller layer; this package is agnostic to that.
type Profile map[string]any
