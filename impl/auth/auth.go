package auth

import (
	"fmt"
	"strings"

	"entrypay/entity"
)

type Database interface {
	GetUser(token string) (*entity.User, error)
}

type Auth struct {
	db Database
}

func New(db Database) *Auth {
	return &Auth{db: db}
}

func (a Auth) UserByToken(token string) (*entity.User, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, entity.ErrUnauthorized
	}
	user, err := a.db.GetUser(token)
	if err != nil {
		return nil, err
	}
	if user.Id == "" {
		return nil, fmt.Errorf("user %s has no id: %w", user.Username, entity.ErrUnauthorized)
	}
	return user, nil
}
