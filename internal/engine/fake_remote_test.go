package engine

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

// fakeCollection is an in-memory remote.Collection supporting the equality
// and $gt queries the engine issues. Error fields inject failures.
type fakeCollection struct {
	mu   sync.Mutex
	docs []map[string]any

	findErr   error
	updateErr error
	deleteErr error

	updateCalls int
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func fieldMatches(docVal, cond any) bool {
	if m, ok := cond.(map[string]any); ok {
		if bound, ok := m["$gt"]; ok {
			dv, ok1 := toFloat(docVal)
			bv, ok2 := toFloat(bound)
			return ok1 && ok2 && dv > bv
		}
		return reflect.DeepEqual(docVal, m)
	}
	if dv, ok1 := toFloat(docVal); ok1 {
		if cv, ok2 := toFloat(cond); ok2 {
			return dv == cv
		}
	}
	return reflect.DeepEqual(docVal, cond)
}

func matches(doc map[string]any, filter remote.Q) bool {
	for k, cond := range filter {
		if !fieldMatches(doc[k], cond) {
			return false
		}
	}
	return true
}

func decodeInto(src any, out any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *fakeCollection) Find(ctx context.Context, filter remote.Q, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return c.findErr
	}

	found := []map[string]any{}
	for _, doc := range c.docs {
		if matches(doc, filter) {
			found = append(found, doc)
		}
	}
	return decodeInto(found, out)
}

func (c *fakeCollection) FindOne(ctx context.Context, filter remote.Q, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return c.findErr
	}

	for _, doc := range c.docs {
		if matches(doc, filter) {
			return decodeInto(doc, out)
		}
	}
	return common.ErrorNotFound
}

func (c *fakeCollection) UpdateOne(ctx context.Context, filter remote.Q, update remote.Update, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalls++
	if c.updateErr != nil {
		return c.updateErr
	}

	apply := func(doc map[string]any) {
		if set, ok := update["$set"].(map[string]any); ok {
			for k, v := range set {
				doc[k] = v
			}
		}
		if unset, ok := update["$unset"].(map[string]any); ok {
			for k := range unset {
				delete(doc, k)
			}
		}
	}

	for _, doc := range c.docs {
		if matches(doc, filter) {
			apply(doc)
			return nil
		}
	}
	if !upsert {
		return nil
	}

	doc := map[string]any{}
	for k, v := range filter {
		if _, isOp := v.(map[string]any); !isOp {
			doc[k] = v
		}
	}
	apply(doc)
	c.docs = append(c.docs, doc)
	return nil
}

func (c *fakeCollection) DeleteOne(ctx context.Context, filter remote.Q) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}

	for i, doc := range c.docs {
		if matches(doc, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter remote.Q) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}

	kept := c.docs[:0]
	for _, doc := range c.docs {
		if !matches(doc, filter) {
			kept = append(kept, doc)
		}
	}
	c.docs = kept
	return nil
}

func (c *fakeCollection) seed(doc map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
}

func (c *fakeCollection) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *fakeCollection) byID(id string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if doc["_id"] == id {
			out := make(map[string]any, len(doc))
			for k, v := range doc {
				out[k] = v
			}
			return out
		}
	}
	return nil
}

func (c *fakeCollection) updates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateCalls
}

func (c *fakeCollection) setUpdateErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateErr = err
}

// fakeRemote is an in-memory remote.Client.
type fakeRemote struct {
	mu      sync.Mutex
	userID  string
	authErr error
	cols    map[string]*fakeCollection
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{userID: "user-1", cols: map[string]*fakeCollection{}}
}

func (f *fakeRemote) Authenticate(ctx context.Context) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return f.userID, nil
}

func (f *fakeRemote) Collection(name string) remote.Collection {
	return f.col(name)
}

func (f *fakeRemote) col(name string) *fakeCollection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[name]
	if !ok {
		c = &fakeCollection{}
		f.cols[name] = c
	}
	return c
}

func (f *fakeRemote) Close(ctx context.Context) error { return nil }
