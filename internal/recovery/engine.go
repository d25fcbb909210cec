package recovery

import (
	"context"
	"sync"

	"campaignclient/internal/crypto"
	"campaignclient/internal/logger"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"
	"campaignclient/internal/signer"
	"campaignclient/internal/storage"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const validatedSize = 1024

// Derivation is the key material path used to recompute passwords and the
// cipher they are checked against.
type Derivation interface {
	IdentityKey(secret []byte, address string) ([]byte, error)
	DerivePassword(campaignSeed, identityKey []byte) (string, error)
	OpenResponseSeed(responseSeed, identityKey []byte) (string, error)
	Decrypt(password, ciphertext string) (string, error)
}

type cryptoDerivation struct{}

func (cryptoDerivation) IdentityKey(secret []byte, address string) ([]byte, error) {
	return crypto.IdentityKey(secret, address)
}

func (cryptoDerivation) DerivePassword(campaignSeed, identityKey []byte) (string, error) {
	return crypto.DerivePassword(campaignSeed, identityKey)
}

func (cryptoDerivation) OpenResponseSeed(responseSeed, identityKey []byte) (string, error) {
	return crypto.OpenResponseSeed(responseSeed, identityKey)
}

func (cryptoDerivation) Decrypt(password, ciphertext string) (string, error) {
	return crypto.Decrypt(password, ciphertext)
}

// validated is an outcome already checked against these exact ciphertexts.
type validated struct {
	title       string
	description string
	outcome     Outcome
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Engine unlocks encrypted campaigns from, in order: the stored password, the
// creator derivation, the respondent derivation. Only a password that has
// just decrypted the campaign is ever written to the store.
type Engine struct {
	store  storage.PasswordStore
	derive Derivation

	mu    sync.Mutex
	locks map[string]*keyLock

	validated *lru.Cache[string, validated]
}

func NewEngine(store storage.PasswordStore) *Engine {
	return NewEngineWithDerivation(store, cryptoDerivation{})
}

func NewEngineWithDerivation(store storage.PasswordStore, derive Derivation) *Engine {
	cache, err := lru.New[string, validated](validatedSize)
	if err != nil {
		panic(err)
	}
	return &Engine{store: store, derive: derive, locks: make(map[string]*keyLock), validated: cache}
}

func keyOf(campaignID, holder string) string {
	return campaignID + "|" + model.NormalizeAddress(holder)
}

// lock serializes work on one (campaign, holder) pair. The entry is dropped
// once its last holder releases it.
func (e *Engine) lock(key string) func() {
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &keyLock{}
		e.locks[key] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, key)
		}
		e.mu.Unlock()
	}
}

// cached returns the outcome validated earlier for the same ciphertexts and
// the same stored password.
func (e *Engine) cached(key string, c *model.Campaign, password string) (*Outcome, bool) {
	entry, ok := e.validated.Get(key)
	if !ok {
		return nil, false
	}
	if entry.title != c.Title || entry.description != c.Description || entry.outcome.Password != password {
		e.validated.Remove(key)
		return nil, false
	}
	outcome := entry.outcome
	return &outcome, true
}

func (e *Engine) remember(key string, c *model.Campaign, outcome *Outcome) {
	e.validated.Add(key, validated{title: c.Title, description: c.Description, outcome: *outcome})
}

// Recover returns the display state of c for holder. identity may be nil when
// no automatic identity secret is available. The returned error is reserved
// for storage failures; a campaign that stays locked is not an error.
func (e *Engine) Recover(ctx context.Context, c *model.Campaign, holder string, identity signer.IdentitySource) (*Outcome, error) {
	if !c.Encrypted && !crypto.IsEncrypted(c.Title) {
		return &Outcome{CampaignID: c.ID, Unlocked: true, Source: SourcePlain, Title: c.Title, Description: c.Description}, nil
	}

	key := keyOf(c.ID, holder)
	unlock := e.lock(key)
	defer unlock()

	reason := LockNoSource
	var cause error

	stored, err := e.store.GetPassword(c.ID, holder)
	switch {
	case err == nil:
		if outcome, ok := e.cached(key, c, stored.Password); ok {
			outcome.Source = SourceStored
			metrics.Recoveries.WithLabelValues(string(SourceStored)).Inc()
			return outcome, nil
		}
		if outcome, ok := e.tryPassword(c, stored.Password, SourceStored); ok {
			e.remember(key, c, outcome)
			metrics.Recoveries.WithLabelValues(string(SourceStored)).Inc()
			return outcome, nil
		}
		logger.Warn("stored campaign password does not decrypt, evicting", zap.String("campaign", c.ID))
		if err := e.store.DeletePassword(c.ID, holder); err != nil {
			return nil, errors.Wrap(err, "evict stored password")
		}
		reason = LockWrongPassword
	case errors.Is(err, storage.ErrNotFound):
		e.validated.Remove(key)
	default:
		return nil, errors.Wrap(err, "read stored password")
	}

	secret := identitySecret(ctx, identity)
	if secret != nil {
		for _, path := range []struct {
			source Source
			derive func() (string, bool, error)
		}{
			{SourceCreator, func() (string, bool, error) { return e.creatorPassword(c, holder, secret) }},
			{SourceRespondent, func() (string, bool, error) { return e.respondentPassword(c, holder, secret) }},
		} {
			password, applies, err := path.derive()
			if !applies {
				continue
			}
			if err == nil {
				if outcome, ok := e.tryPassword(c, password, path.source); ok {
					if err := e.save(c.ID, holder, password, path.source); err != nil {
						return nil, err
					}
					e.remember(key, c, outcome)
					metrics.Recoveries.WithLabelValues(string(path.source)).Inc()
					return outcome, nil
				}
			}
			if reason == LockNoSource {
				reason = LockDerivationMismatch
			}
			cause = err
			logger.Debug("derived campaign password does not decrypt", zap.String("campaign", c.ID), zap.String("path", string(path.source)))
		}
	}

	metrics.Recoveries.WithLabelValues("locked").Inc()
	return &Outcome{
		CampaignID:  c.ID,
		Title:       c.Title,
		Description: c.Description,
		Failure:     &RecoveryFailure{CampaignID: c.ID, Reason: reason, Err: cause},
	}, nil
}

// Unlock validates a password typed by the user and stores it on success.
func (e *Engine) Unlock(c *model.Campaign, holder, password string) (*Outcome, error) {
	key := keyOf(c.ID, holder)
	unlock := e.lock(key)
	defer unlock()

	outcome, ok := e.tryPassword(c, password, SourceManual)
	if !ok {
		return &Outcome{
			CampaignID:  c.ID,
			Title:       c.Title,
			Description: c.Description,
			Failure:     &RecoveryFailure{CampaignID: c.ID, Reason: LockWrongPassword, Err: crypto.ErrAuthFailed},
		}, nil
	}
	if err := e.save(c.ID, holder, password, SourceManual); err != nil {
		return nil, err
	}
	e.remember(key, c, outcome)
	metrics.Recoveries.WithLabelValues(string(SourceManual)).Inc()
	return outcome, nil
}

// RecoverAll runs Recover for each campaign, one at a time.
func (e *Engine) RecoverAll(ctx context.Context, campaigns []*model.Campaign, holder string, identity signer.IdentitySource) (map[string]*Outcome, error) {
	outcomes := make(map[string]*Outcome, len(campaigns))
	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome, err := e.Recover(ctx, c, holder, identity)
		if err != nil {
			return outcomes, errors.Wrapf(err, "recover campaign %s", c.ID)
		}
		outcomes[c.ID] = outcome
	}
	return outcomes, nil
}

func (e *Engine) creatorPassword(c *model.Campaign, holder string, secret []byte) (string, bool, error) {
	if !c.IsCreator(holder) || len(c.CampaignSeed) == 0 {
		return "", false, nil
	}
	key, err := e.derive.IdentityKey(secret, holder)
	if err != nil {
		return "", true, err
	}
	password, err := e.derive.DerivePassword(c.CampaignSeed, key)
	return password, true, err
}

func (e *Engine) respondentPassword(c *model.Campaign, holder string, secret []byte) (string, bool, error) {
	response, ok := c.ResponseOf(holder)
	if !ok || len(response.ResponseSeed) == 0 {
		return "", false, nil
	}
	key, err := e.derive.IdentityKey(secret, holder)
	if err != nil {
		return "", true, err
	}
	password, err := e.derive.OpenResponseSeed(response.ResponseSeed, key)
	return password, true, err
}

func (e *Engine) save(campaignID, holder, password string, source Source) error {
	err := e.store.SavePassword(&storage.StoredPassword{
		CampaignID: campaignID,
		Holder:     holder,
		Password:   password,
		Source:     storageSource(source),
	})
	return errors.Wrap(err, "store recovered password")
}

func storageSource(source Source) storage.PasswordSource {
	switch source {
	case SourceCreator:
		return storage.SourceCreator
	case SourceRespondent:
		return storage.SourceRespondent
	default:
		return storage.SourceManual
	}
}

func identitySecret(ctx context.Context, identity signer.IdentitySource) []byte {
	if identity == nil {
		return nil
	}
	secret, ok, err := identity.IdentitySecret(ctx)
	if err != nil {
		logger.Debug("identity secret unavailable", zap.Error(err))
		return nil
	}
	if !ok || len(secret) == 0 {
		return nil
	}
	return secret
}

// tryPassword decrypts title and description with password.
func (e *Engine) tryPassword(c *model.Campaign, password string, source Source) (*Outcome, bool) {
	if password == "" || !(crypto.IsEncrypted(c.Title) || crypto.IsEncrypted(c.Description)) {
		return nil, false
	}
	title, err := e.decryptField(password, c.Title)
	if err != nil {
		return nil, false
	}
	description, err := e.decryptField(password, c.Description)
	if err != nil {
		return nil, false
	}
	return &Outcome{
		CampaignID:  c.ID,
		Unlocked:    true,
		Source:      source,
		Title:       title,
		Description: description,
		Password:    password,
	}, true
}

func (e *Engine) decryptField(password, value string) (string, error) {
	if !crypto.IsEncrypted(value) {
		return value, nil
	}
	return e.derive.Decrypt(password, value)
}
