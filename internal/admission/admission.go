// Package admission creates and reads registration entries.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"entrypay/entity"
	"entrypay/lib/sl"
)

type Database interface {
	EntryByID(ctx context.Context, id string) (*entity.Entry, error)
	EntryByOwner(ctx context.Context, categoryId, createdBy string) (*entity.Entry, error)
	CreateEntry(ctx context.Context, entry *entity.Entry, member *entity.Member) error
	UpdateEntry(ctx context.Context, id string, cond entity.EntryCondition, upd entity.EntryUpdate) (bool, error)
	Category(ctx context.Context, id string) (*entity.Category, error)
	Tournament(ctx context.Context, id string) (*entity.Tournament, error)
}

type Service struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With(sl.Module("admission")),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", entity.ErrStorageUnavailable, op, err)
}

// EnsureEntry returns the id of the participant's entry for the category,
// creating it when absent. Concurrent calls for the same pair all return the
// same id: the store's unique constraint picks the winner and losers re-read it.
func (s *Service) EnsureEntry(ctx context.Context, participantId, categoryId string) (string, error) {
	log := s.log.With(
		slog.String("participant", participantId),
		slog.String("category_id", categoryId),
	)

	existing, err := s.db.EntryByOwner(ctx, categoryId, participantId)
	if err != nil {
		return "", unavailable("find entry", err)
	}
	if existing != nil {
		return existing.Id, nil
	}

	entry := entity.NewEntry(categoryId, participantId)
	err = s.db.CreateEntry(ctx, entry, entity.NewMember(entry))
	if err == nil {
		log.With(sl.Entry(entry.Id)).Info("entry created")
		return entry.Id, nil
	}
	if errors.Is(err, entity.ErrInvalidReference) {
		log.With(sl.Err(err)).Warn("entry rejected")
		return "", err
	}
	if !errors.Is(err, entity.ErrDuplicateEntry) {
		log.With(sl.Err(err)).Error("create entry")
		return "", unavailable("create entry", err)
	}

	// lost the race: exactly one winner exists, read it once
	winner, err := s.db.EntryByOwner(ctx, categoryId, participantId)
	if err != nil {
		return "", unavailable("re-read entry", err)
	}
	if winner == nil {
		return "", unavailable("re-read entry", errors.New("conflicting entry vanished"))
	}
	log.With(sl.Entry(winner.Id)).Debug("concurrent admission resolved")
	return winner.Id, nil
}

// Entry returns the entry when the caller is its creator or the tournament organizer.
func (s *Service) Entry(ctx context.Context, entryId, callerId string) (*entity.Entry, error) {
	entry, tournament, err := s.load(ctx, entryId)
	if err != nil {
		return nil, err
	}
	if !entry.ManagedBy(callerId, tournament) {
		return nil, entity.ErrForbidden
	}
	return entry, nil
}

// Withdraw moves a pending or accepted entry to withdrawn. Withdrawing twice is not an error.
func (s *Service) Withdraw(ctx context.Context, entryId, callerId string) (*entity.Entry, error) {
	entry, err := s.Entry(ctx, entryId, callerId)
	if err != nil {
		return nil, err
	}
	if entry.Status == entity.StatusWithdrawn {
		return entry, nil
	}

	ok, err := s.db.UpdateEntry(ctx, entryId,
		entity.EntryCondition{Status: []entity.EntryStatus{entity.StatusPending, entity.StatusAccepted}},
		entity.EntryUpdate{Status: entity.StatusWithdrawn},
	)
	if err != nil {
		return nil, unavailable("withdraw entry", err)
	}
	if ok {
		s.log.With(sl.Entry(entryId), slog.String("caller", callerId)).Info("entry withdrawn")
	}

	entry, err = s.db.EntryByID(ctx, entryId)
	if err != nil {
		return nil, unavailable("read entry", err)
	}
	if entry == nil {
		return nil, entity.ErrNotFound
	}
	return entry, nil
}

func (s *Service) load(ctx context.Context, entryId string) (*entity.Entry, *entity.Tournament, error) {
	entry, err := s.db.EntryByID(ctx, entryId)
	if err != nil {
		return nil, nil, unavailable("read entry", err)
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("entry %s: %w", entryId, entity.ErrNotFound)
	}
	category, err := s.db.Category(ctx, entry.CategoryId)
	if err != nil {
		return nil, nil, unavailable("read category", err)
	}
	if category == nil {
		return entry, nil, nil
	}
	tournament, err := s.db.Tournament(ctx, category.TournamentId)
	if err != nil {
		return nil, nil, unavailable("read tournament", err)
	}
	return entry, tournament, nil
}
