package localstore

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/dmitrijs2005/feedvault/internal/models"
)

// Query is a chained builder over the date index, in the spirit of
// Dexie-style collections: Reverse/Filter/Offset/Limit then ToArray.
// Filtering applies before offset and limit.
type Query struct {
	s       *Store
	reverse bool
	offset  int
	limit   int
	filters []func(*models.FeedItem) bool
}

// Query starts a new query ordered by date ascending.
func (s *Store) Query() *Query {
	return &Query{s: s, limit: -1}
}

// Reverse flips the scan to date descending.
func (q *Query) Reverse() *Query {
	q.reverse = true
	return q
}

// Offset skips the first n matching items.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Limit caps the result at n items. Negative means unlimited.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Filter keeps only items for which pred returns true.
func (q *Query) Filter(pred func(*models.FeedItem) bool) *Query {
	q.filters = append(q.filters, pred)
	return q
}

func (q *Query) matches(item *models.FeedItem) bool {
	for _, pred := range q.filters {
		if !pred(item) {
			return false
		}
	}
	return true
}

// ToArray runs the query and materializes the page.
func (q *Query) ToArray(ctx context.Context) ([]models.FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.limit == 0 {
		return []models.FeedItem{}, nil
	}

	result := []models.FeedItem{}
	skipped := 0

	err := q.s.db.View(func(tx *bolt.Tx) error {
		feed := tx.Bucket([]byte(bucketFeed))
		c := tx.Bucket([]byte(bucketDateIdx)).Cursor()

		next := c.Next
		k, id := c.First()
		if q.reverse {
			next = c.Prev
			k, id = c.Last()
		}

		for ; k != nil; k, id = next() {
			data := feed.Get(id)
			if data == nil {
				continue
			}
			var item models.FeedItem
			if e := json.Unmarshal(data, &item); e != nil {
				q.s.log.Warn(ctx, "skipping unreadable local record", "key", string(id), "error", e)
				continue
			}
			if !q.matches(&item) {
				continue
			}
			if skipped < q.offset {
				skipped++
				continue
			}
			result = append(result, item)
			if q.limit > 0 && len(result) >= q.limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
