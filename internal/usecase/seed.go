package usecase

import "github.com/iho/beanbank/internal/domain"

// DefaultSeedAccounts returns the accounts a fresh store starts with.
func DefaultSeedAccounts() []*domain.Account {
	return []*domain.Account{
		{ID: "admin1", Username: "Choir_Manager", Section: "Conductor", Beans: 10000, BeanCoins: 100, IsAdmin: true},
		{ID: "u1", Username: "Maestro_John", Section: "Conductor", Beans: 1000, BeanCoins: 10},
		{ID: "u2", Username: "Tim_TenorOne", Section: "Tenor I", Beans: 500, BeanCoins: 5},
		{ID: "u3", Username: "Tom_TenorTwo", Section: "Tenor II", Beans: 25},
		{ID: "u4", Username: "Ben_Baritone", Section: "Baritone", Beans: 450, BeanCoins: 2},
		{ID: "u5", Username: "Barry_Bass", Section: "Bass", Beans: 300},
	}
}
