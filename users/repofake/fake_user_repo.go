package fakeuserrepo

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-pos-console/users"
)

var _ users.AccountRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	accounts    map[string]*users.Account
	usernameIds map[string]string // username to account id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts:    make(map[string]*users.Account),
		usernameIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	ur.accounts[account.ID] = account
	ur.usernameIds[account.Username] = account.ID
	return nil
}

func (ur *FakeUserRepo) Delete(username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.usernameIds[username]
	if !ok {
		return errors.New("not found")
	}
	delete(ur.usernameIds, username)
	delete(ur.accounts, id)
	return nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[username]
	if !ok {
		return nil, errors.New("not found")
	}
	return ur.accounts[id], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	account, ok := ur.accounts[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return account, nil
}

func (ur *FakeUserRepo) List() ([]users.Profile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	profiles := make([]users.Profile, 0, len(ur.accounts))
	for _, a := range ur.accounts {
		profiles = append(profiles, a.Profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Username < profiles[j].Username
	})
	return profiles, nil
}
