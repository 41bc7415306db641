package store

import (
	"fmt"
	"math"

	"vetclinic/internal/person/models"
	"vetclinic/pkg/platform/sentinel"
)

// IDAllocator hands out person ids and tracks which explicit ids may be claimed.
//
// Every id that was ever issued or claimed is below next, so generated ids
// never collide with a live record and are never reused. It is not safe for
// concurrent use; callers hold the store lock.
type IDAllocator struct {
	policy    models.IDPolicy
	next      int64
	exhausted bool
	retired   map[int64]struct{}
}

// NewIDAllocator starts issuing at 1.
func NewIDAllocator(policy models.IDPolicy) *IDAllocator {
	return &IDAllocator{
		policy:  policy,
		next:    1,
		retired: make(map[int64]struct{}),
	}
}

// Next issues a fresh id.
func (a *IDAllocator) Next() (int64, error) {
	if a.exhausted {
		return 0, fmt.Errorf("person id space exhausted: %w", sentinel.ErrUnavailable)
	}
	id := a.next
	a.observe(id)
	return id, nil
}

// Claim reserves an explicit id. The caller has already checked the id is not
// occupied. Retired ids are refused under the retire policy.
func (a *IDAllocator) Claim(id int64) error {
	if _, ok := a.retired[id]; ok {
		return sentinel.ErrAlreadyUsed
	}
	a.observe(id)
	return nil
}

// Release records a deleted id.
func (a *IDAllocator) Release(id int64) {
	if a.policy.RetiresDeletedIDs() {
		a.retired[id] = struct{}{}
	}
}

// observe moves the high-water mark past id.
func (a *IDAllocator) observe(id int64) {
	if id < a.next {
		return
	}
	if id == math.MaxInt64 {
		a.exhausted = true
		return
	}
	a.next = id + 1
}
