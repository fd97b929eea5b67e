// Package remote defines the authenticated document-collection client the
// sync engine consumes, plus its MongoDB implementation. Queries are
// field-equality/comparison documents in the mongo query language.
package remote

import "context"

// Q is an equality/comparison query document, e.g.
//
//	remote.Q{"user_id": uid, "date": remote.Gt(watermark)}
type Q map[string]any

// Gt builds a strictly-greater-than comparison for a field.
func Gt(v any) map[string]any {
	return map[string]any{"$gt": v}
}

// Update is a mongo-style update document. Build it with Set or Unset.
type Update map[string]any

// Set merges the given fields into the matched document.
func Set(fields map[string]any) Update {
	return Update{"$set": fields}
}

// Unset removes the named fields from the matched document without deleting
// the document itself.
func Unset(names ...string) Update {
	unset := make(map[string]any, len(names))
	for _, n := range names {
		unset[n] = ""
	}
	return Update{"$unset": unset}
}

// Collection is one logical document collection.
type Collection interface {
	// Find decodes all matching documents into out (a pointer to a slice).
	Find(ctx context.Context, filter Q, out any) error

	// FindOne decodes the first matching document into out. Returns
	// common.ErrorNotFound when nothing matches.
	FindOne(ctx context.Context, filter Q, out any) error

	// UpdateOne applies update to the first matching document, inserting
	// it when upsert is true and nothing matches.
	UpdateOne(ctx context.Context, filter Q, update Update, upsert bool) error

	// DeleteOne removes the first matching document.
	DeleteOne(ctx context.Context, filter Q) error

	// DeleteMany removes all matching documents.
	DeleteMany(ctx context.Context, filter Q) error
}

// Client is an authenticated handle to the remote document store.
type Client interface {
	// Authenticate resolves the bearer credential into a user identity.
	Authenticate(ctx context.Context) (string, error)

	// Collection returns a handle to the named collection.
	Collection(name string) Collection

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
