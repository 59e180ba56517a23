package redis

import (
	"fmt"
	"time"

	"github.com/Jyotish2002/skill-link/store"
	"github.com/gomodule/redigo/redis"
)

// Config represents the Redis store config structure.
type Config struct {
	Address     string        `koanf:"address"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	ActiveConns int           `koanf:"active_conns"`
	IdleConns   int           `koanf:"idle_conns"`
	Timeout     time.Duration `koanf:"timeout"`

	// fmt pattern for session keys, eg: skilllink:callsess:%s
	PrefixSession string `koanf:"prefix_session"`
}

// Redis represents the Redis implementation of the Store interface. The
// booking application mirrors each scheduled session's participant pair
// into a hash under PrefixSession; the relay reads those hashes.
type Redis struct {
	cfg  *Config
	pool *redis.Pool
}

type callSession struct {
	MentorID  string `redis:"mentor_id"`
	LearnerID string `redis:"learner_id"`
}

// New returns a new Redis store.
func New(cfg Config) (*Redis, error) {
	pool := &redis.Pool{
		Wait:      true,
		MaxActive: cfg.ActiveConns,
		MaxIdle:   cfg.IdleConns,
		Dial: func() (redis.Conn, error) {
			return redis.Dial(
				"tcp",
				cfg.Address,
				redis.DialPassword(cfg.Password),
				redis.DialConnectTimeout(cfg.Timeout),
				redis.DialReadTimeout(cfg.Timeout),
				redis.DialWriteTimeout(cfg.Timeout),
				redis.DialDatabase(cfg.DB),
			)
		},
	}

	// Test connection.
	c := pool.Get()
	defer c.Close()

	if err := c.Err(); err != nil {
		return nil, err
	}
	return &Redis{cfg: &cfg, pool: pool}, nil
}

// AddCallSession adds a call session record to the store. A zero ttl means
// the record never expires.
func (r *Redis) AddCallSession(cs store.CallSession, ttl time.Duration) error {
	c := r.pool.Get()
	defer c.Close()

	key := fmt.Sprintf(r.cfg.PrefixSession, cs.ID)
	c.Send("HMSET", key,
		"mentor_id", cs.MentorID,
		"learner_id", cs.LearnerID)
	if ttl > 0 {
		c.Send("EXPIRE", key, int(ttl.Seconds()))
	}
	return c.Flush()
}

// GetCallSession gets a call session record from the store.
func (r *Redis) GetCallSession(id string) (store.CallSession, error) {
	c := r.pool.Get()
	defer c.Close()

	var (
		out store.CallSession
		cs  callSession
		key = fmt.Sprintf(r.cfg.PrefixSession, id)
	)
	res, err := redis.Values(c.Do("HGETALL", key))
	if err != nil {
		return out, err
	}
	if err := redis.ScanStruct(res, &cs); err != nil {
		return out, err
	}

	// HGETALL returns an empty reply, not an error, for a missing key.
	if cs.MentorID == "" && cs.LearnerID == "" {
		return out, store.ErrSessionNotFound
	}
	return store.CallSession{
		ID:        id,
		MentorID:  cs.MentorID,
		LearnerID: cs.LearnerID,
	}, nil
}

// RemoveCallSession deletes a call session record from the store.
func (r *Redis) RemoveCallSession(id string) error {
	c := r.pool.Get()
	defer c.Close()

	_, err := c.Do("DEL", fmt.Sprintf(r.cfg.PrefixSession, id))
	return err
}
