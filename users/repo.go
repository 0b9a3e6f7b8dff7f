package users

// Account is a user as held by a credential store: the public profile plus
// its password and PIN hashes.
type Account struct {
	Profile
	PasswordHash string `json:"-"`
	PINHash      string `json:"-"`
}

type AccountRepo interface {
	Upsert(account *Account) error
	Delete(username string) error
	GetByUsername(username string) (*Account, error)
	GetByID(id string) (*Account, error)
	List() ([]Profile, error)
}
