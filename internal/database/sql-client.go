package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"entrypay/entity"
	"entrypay/internal/config"
)

const (
	errDuplicateKey = 1062 // ER_DUP_ENTRY
	errNoReferenced = 1452 // ER_NO_REFERENCED_ROW_2
)

type MySql struct {
	db         *sql.DB
	prefix     string
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(conf *config.Config) (*MySql, error) {
	dsn := mysql.NewConfig()
	dsn.User = conf.MySQL.UserName
	dsn.Passwd = conf.MySQL.Password
	dsn.Net = "tcp"
	dsn.Addr = conf.MySQL.HostName + ":" + conf.MySQL.Port
	dsn.DBName = conf.MySQL.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	// conditional updates report matched rows, not only changed ones
	dsn.ClientFoundRows = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &MySql{
		db:         db,
		prefix:     conf.MySQL.Prefix,
		statements: make(map[string]*sql.Stmt),
	}
	if err = sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sdb, nil
}

func (s *MySql) Close() {
	s.closeStmt()
	_ = s.db.Close()
}

// classify turns driver errors into store sentinels.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDuplicateKey:
			return entity.ErrDuplicateEntry
		case errNoReferenced:
			return fmt.Errorf("%s: %w", me.Message, entity.ErrInvalidReference)
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*entity.Entry, error) {
	var entry entity.Entry
	var reference, amount sql.NullString
	var paidAt, checkoutAt sql.NullTime
	err := row.Scan(
		&entry.Id,
		&entry.CategoryId,
		&entry.CreatedBy,
		&entry.Status,
		&entry.PaymentStatus,
		&reference,
		&amount,
		&entry.PaymentCurrency,
		&paidAt,
		&checkoutAt,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.PaymentReference = reference.String
	entry.PaymentAmount = amount.String
	if paidAt.Valid {
		t := paidAt.Time
		entry.PaidAt = &t
	}
	if checkoutAt.Valid {
		t := checkoutAt.Time
		entry.CheckoutAt = &t
	}
	return &entry, nil
}

func (s *MySql) queryEntry(ctx context.Context, stmt *sql.Stmt, args ...any) (*entity.Entry, error) {
	entry, err := scanEntry(stmt.QueryRowContext(ctx, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select entry: %w", err)
	}
	return entry, nil
}

func (s *MySql) EntryByID(ctx context.Context, id string) (*entity.Entry, error) {
	stmt, err := s.stmtSelectEntry()
	if err != nil {
		return nil, err
	}
	return s.queryEntry(ctx, stmt, id)
}

func (s *MySql) EntryByOwner(ctx context.Context, categoryId, createdBy string) (*entity.Entry, error) {
	stmt, err := s.stmtSelectEntryByOwner()
	if err != nil {
		return nil, err
	}
	return s.queryEntry(ctx, stmt, categoryId, createdBy)
}

// CreateEntry writes the entry and its member in one transaction.
func (s *MySql) CreateEntry(ctx context.Context, entry *entity.Entry, member *entity.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %sentries
			(id, category_id, created_by, status, payment_status, payment_currency, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, s.prefix),
		entry.Id, entry.CategoryId, entry.CreatedBy, entry.Status, entry.PaymentStatus,
		entry.PaymentCurrency, entry.CreatedAt,
	)
	if err != nil {
		return classify(err)
	}

	if member != nil {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %sentry_members (entry_id, profile_id, created_at) VALUES (?, ?, ?)`, s.prefix),
			member.EntryId, member.ProfileId, member.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert member: %w", classify(err))
		}
	}

	return tx.Commit()
}

func (s *MySql) UpdateEntry(ctx context.Context, id string, cond entity.EntryCondition, upd entity.EntryUpdate) (bool, error) {
	if upd.IsEmpty() {
		return false, fmt.Errorf("empty update")
	}
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Status != "" {
		add("status", upd.Status)
	}
	if upd.PaymentStatus != "" {
		add("payment_status", upd.PaymentStatus)
	}
	if upd.PaymentReference != "" {
		add("payment_reference", upd.PaymentReference)
	}
	if upd.PaymentAmount != "" {
		add("payment_amount", upd.PaymentAmount)
	}
	if upd.PaymentCurrency != "" {
		add("payment_currency", upd.PaymentCurrency)
	}
	if upd.PaidAt != nil {
		add("paid_at", *upd.PaidAt)
	}
	if upd.CheckoutAt != nil {
		add("checkout_at", *upd.CheckoutAt)
	}

	where := []string{"id = ?"}
	args = append(args, id)
	if len(cond.Status) > 0 {
		where = append(where, "status IN ("+placeholders(len(cond.Status))+")")
		for _, st := range cond.Status {
			args = append(args, st)
		}
	}
	if len(cond.PaymentStatus) > 0 {
		where = append(where, "payment_status IN ("+placeholders(len(cond.PaymentStatus))+")")
		for _, ps := range cond.PaymentStatus {
			args = append(args, ps)
		}
	}

	query := fmt.Sprintf(`UPDATE %sentries SET %s WHERE %s`,
		s.prefix, strings.Join(sets, ", "), strings.Join(where, " AND "))
	stmt, err := s.prepareStmt(query, query)
	if err != nil {
		return false, err
	}
	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return false, fmt.Errorf("update entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *MySql) EntriesAwaitingPayment(ctx context.Context, before time.Time, limit int) ([]*entity.Entry, error) {
	stmt, err := s.stmtSelectAwaitingPayment()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := stmt.QueryContext(ctx, entity.PaymentUnpaid, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*entity.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *MySql) Category(ctx context.Context, id string) (*entity.Category, error) {
	stmt, err := s.stmtSelectCategory()
	if err != nil {
		return nil, err
	}
	var category entity.Category
	err = stmt.QueryRowContext(ctx, id).Scan(
		&category.Id,
		&category.TournamentId,
		&category.Name,
		&category.RegistrationFee,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select category: %w", err)
	}
	return &category, nil
}

func (s *MySql) Tournament(ctx context.Context, id string) (*entity.Tournament, error) {
	stmt, err := s.stmtSelectTournament()
	if err != nil {
		return nil, err
	}
	var tournament entity.Tournament
	err = stmt.QueryRowContext(ctx, id).Scan(
		&tournament.Id,
		&tournament.Title,
		&tournament.OrganizerId,
		&tournament.Status,
		&tournament.RegistrationStart,
		&tournament.RegistrationEnd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select tournament: %w", err)
	}
	return &tournament, nil
}

func (s *MySql) SaveWebhookEvent(ctx context.Context, event *entity.WebhookEvent) error {
	stmt, err := s.stmtUpsertWebhookEvent()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		event.EventId, event.Type, event.EntryId, event.SessionId, event.Outcome, event.Error, event.ReceivedAt,
	)
	return err
}

func (s *MySql) GetUser(token string) (*entity.User, error) {
	stmt, err := s.stmtSelectUser()
	if err != nil {
		return nil, err
	}
	var user entity.User
	err = stmt.QueryRow(token).Scan(&user.Id, &user.Username, &user.Name, &user.Email, &user.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUnauthorized
		}
		return nil, err
	}
	return &user, nil
}
