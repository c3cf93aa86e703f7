package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("patient not found")
	// ErrConflict is returned when the NIC or PHN is already registered.
	ErrConflict = errors.New("patient already registered")
)

// SearchField selects how Find matches the search term.
type SearchField string

const (
	ByPHN  SearchField = "phn"
	ByNIC  SearchField = "nic"
	ByName SearchField = "name"
)

func ParseSearchField(s string) (SearchField, bool) {
	switch f := SearchField(s); f {
	case ByPHN, ByNIC, ByName:
		return f, true
	}
	return "", false
}

type Repository interface {
	Create(ctx context.Context, p *Patient, avatar []byte) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// Find returns the first patient matching term, oldest first.
	Find(ctx context.Context, by SearchField, term string) (*Patient, error)

	// Avatar; a nil avatar clears it.
	SetAvatar(ctx context.Context, id int64, avatar []byte) error
	GetAvatar(ctx context.Context, id int64) ([]byte, error)
}
