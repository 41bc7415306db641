package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"vetclinic/internal/person/models"
	"vetclinic/pkg/platform/sentinel"
)

const (
	personKeyPrefix   = "person:"
	personIndexKey    = "person:index"
	personHighKey     = "person:high_water"
	personRetiredKey  = "person:retired"
	indexMemberDigits = 19
	maxWatchRetries   = 3
)

// bumpHighWater compares decimal strings so ids above 2^53 keep full precision.
const bumpHighWater = `
local function bump(key, id)
	local high = redis.call('GET', key) or '0'
	if #id > #high or (#id == #high and id > high) then
		redis.call('SET', key, id)
	end
end
`

// KEYS: record, index, high water, retired. ARGV: id, index member, name, retire flag.
var createExplicitScript = redis.NewScript(bumpHighWater + `
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 'conflict'
end
if ARGV[4] == '1' and redis.call('SISMEMBER', KEYS[4], ARGV[1]) == 1 then
	return 'retired'
end
redis.call('SET', KEYS[1], ARGV[3])
redis.call('ZADD', KEYS[2], 0, ARGV[2])
bump(KEYS[3], ARGV[1])
return 'ok'
`)

// KEYS: high water, index. ARGV: name, record key prefix.
// Every issued id is at or below the high-water mark, so INCR never lands on a live record.
var createGeneratedScript = redis.NewScript(`
redis.call('INCR', KEYS[1])
local id = redis.call('GET', KEYS[1])
redis.call('SET', ARGV[2] .. id, ARGV[1])
redis.call('ZADD', KEYS[2], 0, string.rep('0', 19 - #id) .. id)
return id
`)

// KEYS: record, index, high water. ARGV: id, index member, name.
var upsertScript = redis.NewScript(bumpHighWater + `
redis.call('SET', KEYS[1], ARGV[3])
redis.call('ZADD', KEYS[2], 0, ARGV[2])
bump(KEYS[3], ARGV[1])
return 'ok'
`)

// KEYS: record, index, retired. ARGV: id, index member, retire flag.
var deleteScript = redis.NewScript(`
if redis.call('DEL', KEYS[1]) == 0 then
	return 0
end
redis.call('ZREM', KEYS[2], ARGV[2])
if ARGV[3] == '1' then
	redis.call('SADD', KEYS[3], ARGV[1])
end
return 1
`)

// KEYS: index. ARGV: record key prefix, limit (-1 for all), descending flag.
// Index members are zero-padded so lexicographic order equals numeric order.
var listScript = redis.NewScript(`
local limit = tonumber(ARGV[2])
if limit == 0 then
	return {}
end
local stop = -1
if limit > 0 then
	stop = limit - 1
end
local members
if ARGV[3] == '1' then
	members = redis.call('ZREVRANGE', KEYS[1], 0, stop)
else
	members = redis.call('ZRANGE', KEYS[1], 0, stop)
end
local out = {}
for _, member in ipairs(members) do
	local id = (string.gsub(member, '^0+', ''))
	local name = redis.call('GET', ARGV[1] .. id)
	if name then
		table.insert(out, id)
		table.insert(out, name)
	end
end
return out
`)

// RedisStore keeps each person under its own key and an ordered index of ids.
// Mutations run as Lua scripts, so check-and-reserve is atomic on the server.
type RedisStore struct {
	client *redis.Client
	policy models.IDPolicy
}

// NewRedis constructs a Redis-backed registry.
func NewRedis(client *redis.Client, policy models.IDPolicy) *RedisStore {
	return &RedisStore{client: client, policy: policy}
}

func (s *RedisStore) Create(ctx context.Context, draft models.Draft) (*models.Person, error) {
	if !draft.HasExplicitID() {
		raw, err := createGeneratedScript.Run(ctx, s.client,
			[]string{personHighKey, personIndexKey},
			draft.Name, personKeyPrefix,
		).Text()
		if err != nil {
			return nil, fmt.Errorf("create person: %w", err)
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse generated id %q: %w", raw, err)
		}
		return &models.Person{ID: id, Name: draft.Name}, nil
	}

	id := *draft.ID
	result, err := createExplicitScript.Run(ctx, s.client,
		[]string{personKey(id), personIndexKey, personHighKey, personRetiredKey},
		id, indexMember(id), draft.Name, s.retireFlag(),
	).Text()
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	switch result {
	case "conflict":
		return nil, sentinel.ErrConflict
	case "retired":
		return nil, sentinel.ErrAlreadyUsed
	}
	return &models.Person{ID: id, Name: draft.Name}, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id int64) (*models.Person, error) {
	name, err := s.client.Get(ctx, personKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find person: %w", err)
	}
	return &models.Person{ID: id, Name: name}, nil
}

// Update runs mutate under WATCH so a concurrent delete or rename aborts the write.
func (s *RedisStore) Update(ctx context.Context, id int64, mutate func(*models.Person) error) (*models.Person, error) {
	key := personKey(id)
	var updated *models.Person

	txf := func(tx *redis.Tx) error {
		name, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load person: %w", err)
		}

		p := &models.Person{ID: id, Name: name}
		if err := mutate(p); err != nil {
			return err
		}
		p.ID = id

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, p.Name, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = p
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update person %d: too much contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	deleted, err := deleteScript.Run(ctx, s.client,
		[]string{personKey(id), personIndexKey, personRetiredKey},
		id, indexMember(id), s.retireFlag(),
	).Int()
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, q models.ListQuery) ([]models.Person, error) {
	desc := "0"
	if q.Descending() {
		desc = "1"
	}
	flat, err := listScript.Run(ctx, s.client,
		[]string{personIndexKey},
		personKeyPrefix, q.Limit(), desc,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	people := make([]models.Person, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		id, err := strconv.ParseInt(flat[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse person id %q: %w", flat[i], err)
		}
		people = append(people, models.Person{ID: id, Name: flat[i+1]})
	}
	return people, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, personIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return int(n), nil
}

// Seed upserts fixture rows and advances the high-water mark past them.
func (s *RedisStore) Seed(ctx context.Context, people []models.Person) error {
	for _, p := range people {
		err := upsertScript.Run(ctx, s.client,
			[]string{personKey(p.ID), personIndexKey, personHighKey},
			p.ID, indexMember(p.ID), p.Name,
		).Err()
		if err != nil {
			return fmt.Errorf("seed person %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) retireFlag() string {
	if s.policy.RetiresDeletedIDs() {
		return "1"
	}
	return "0"
}

func personKey(id int64) string {
	return personKeyPrefix + strconv.FormatInt(id, 10)
}

func indexMember(id int64) string {
	return fmt.Sprintf("%0*d", indexMemberDigits, id)
}
