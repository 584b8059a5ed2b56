package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidOTP is returned when the submitted code does not match.
	ErrInvalidOTP = errors.New("invalid OTP")
	// ErrOTPNotRequested is returned when no live code exists for the subject.
	ErrOTPNotRequested = errors.New("OTP expired or not requested")
)

// OTPStore keeps hashed one-time codes until they expire.
type OTPStore interface {
	Save(ctx context.Context, subject string, hash []byte, ttl time.Duration) error
	Load(ctx context.Context, subject string) ([]byte, error)
	Delete(ctx context.Context, subject string) error
}

const otpKeyPrefix = "otp:v1:"

// RedisOTPStore keeps OTP hashes in Redis with a TTL.
type RedisOTPStore struct {
	cache *redis.Client
}

// NewRedisOTPStore builds a Redis-backed OTP store.
func NewRedisOTPStore(cache *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{cache: cache}
}

func (s *RedisOTPStore) Save(ctx context.Context, subject string, hash []byte, ttl time.Duration) error {
	return s.cache.Set(ctx, otpKeyPrefix+subject, hash, ttl).Err()
}

func (s *RedisOTPStore) Load(ctx context.Context, subject string) ([]byte, error) {
	hash, err := s.cache.Get(ctx, otpKeyPrefix+subject).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOTPNotRequested
	}
	return hash, err
}

func (s *RedisOTPStore) Delete(ctx context.Context, subject string) error {
	return s.cache.Del(ctx, otpKeyPrefix+subject).Err()
}

type memoryOTPEntry struct {
	hash      []byte
	expiresAt time.Time
}

type memoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]memoryOTPEntry
	now     func() time.Time
}

// NewMemoryOTPStore builds an in-process OTP store for development and tests.
func NewMemoryOTPStore() OTPStore {
	return &memoryOTPStore{entries: make(map[string]memoryOTPEntry), now: time.Now}
}

func (s *memoryOTPStore) Save(_ context.Context, subject string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subject] = memoryOTPEntry{hash: hash, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memoryOTPStore) Load(_ context.Context, subject string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[subject]
	if !ok || !s.now().Before(entry.expiresAt) {
		delete(s.entries, subject)
		return nil, ErrOTPNotRequested
	}
	return entry.hash, nil
}

func (s *memoryOTPStore) Delete(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, subject)
	return nil
}

// OTPIssuer issues the fixed demo code and checks submissions against its hash.
type OTPIssuer struct {
	store OTPStore
	code  string
	ttl   time.Duration
}

// NewOTPIssuer builds an issuer handing out code, valid for ttl.
func NewOTPIssuer(store OTPStore, code string, ttl time.Duration) *OTPIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPIssuer{store: store, code: code, ttl: ttl}
}

// Issue stores a fresh code for the subject and returns it.
func (o *OTPIssuer) Issue(ctx context.Context, subject string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(o.code), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	if err := o.store.Save(ctx, otpSubject(subject), hash, o.ttl); err != nil {
		return "", err
	}
	return o.code, nil
}

// Verify consumes the stored code when it matches.
func (o *OTPIssuer) Verify(ctx context.Context, subject, code string) error {
	if err := o.Check(ctx, subject, code); err != nil {
		return err
	}
	return o.Consume(ctx, subject)
}

// Check matches code against the stored hash and leaves it in place.
func (o *OTPIssuer) Check(ctx context.Context, subject, code string) error {
	hash, err := o.store.Load(ctx, otpSubject(subject))
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(strings.TrimSpace(code))); err != nil {
		return ErrInvalidOTP
	}
	return nil
}

// Consume deletes the subject's code.
func (o *OTPIssuer) Consume(ctx context.Context, subject string) error {
	return o.store.Delete(ctx, otpSubject(subject))
}

func otpSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}
