package backendfake

import (
	"github.com/jrsteele09/go-pos-console/sales"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/pkg/errors"
)

// DemoUser is a seeded account with its plain-text credentials.
type DemoUser struct {
	Username string
	Password string
	PIN      string
	Role     users.RoleType
	FullName string
}

var DemoUsers = []DemoUser{
	{Username: "admin", Password: "admin123", PIN: "1111", Role: users.RoleAdmin, FullName: "Store Admin"},
	{Username: "cashier", Password: "cashier123", PIN: "2222", Role: users.RoleCashier, FullName: "Casey Cashier"},
	{Username: "warehouse", Password: "warehouse123", PIN: "3333", Role: users.RoleWarehouse, FullName: "Wade Warehouse"},
}

var demoProducts = []sales.Product{
	{ID: "p-coffee", Name: "Coffee Beans 1kg", Price: 18.50, Stock: 40},
	{ID: "p-mug", Name: "Ceramic Mug", Price: 7.25, Stock: 120},
	{ID: "p-filter", Name: "Paper Filters (100)", Price: 3.10, Stock: 300},
}

// Seed loads the demo users, products and two completed sales.
func Seed(b *Backend) error {
	ids := make(map[string]string, len(DemoUsers))
	for _, u := range DemoUsers {
		account, err := b.AddUser(u.Username, u.Password, u.PIN, u.Role, u.FullName)
		if err != nil {
			return errors.Wrapf(err, "[backendfake.Seed] user %s", u.Username)
		}
		ids[u.Username] = account.ID
	}
	for _, p := range demoProducts {
		b.AddProduct(p)
	}
	if _, err := b.RecordSale(ids["cashier"],
		sales.LineItem{ProductID: "p-coffee", Quantity: 2},
		sales.LineItem{ProductID: "p-mug", Quantity: 4},
	); err != nil {
		return errors.Wrap(err, "[backendfake.Seed] sale")
	}
	if _, err := b.RecordSale(ids["cashier"], sales.LineItem{ProductID: "p-filter", Quantity: 10}); err != nil {
		return errors.Wrap(err, "[backendfake.Seed] sale")
	}
	return nil
}
