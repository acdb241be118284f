package database

import (
	"database/sql"
	"fmt"
)

const entryColumns = `id, category_id, created_by, status, payment_status, payment_reference,
	payment_amount, payment_currency, paid_at, checkout_at, created_at`

// prepareStmt returns a cached prepared statement, preparing it on first use.
func (s *MySql) prepareStmt(name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}

	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *MySql) stmtSelectEntry() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %sentries WHERE id = ?`, entryColumns, s.prefix)
	return s.prepareStmt("selectEntry", query)
}

func (s *MySql) stmtSelectEntryByOwner() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %sentries WHERE category_id = ? AND created_by = ? LIMIT 1`,
		entryColumns, s.prefix)
	return s.prepareStmt("selectEntryByOwner", query)
}

func (s *MySql) stmtSelectAwaitingPayment() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %sentries
			WHERE payment_status = ?
			  AND payment_reference IS NOT NULL AND payment_reference <> ''
			  AND checkout_at < ?
			ORDER BY checkout_at
			LIMIT ?`,
		entryColumns, s.prefix)
	return s.prepareStmt("selectAwaitingPayment", query)
}

func (s *MySql) stmtSelectCategory() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT id, tournament_id, name, registration_fee FROM %scategories WHERE id = ?`, s.prefix)
	return s.prepareStmt("selectCategory", query)
}

func (s *MySql) stmtSelectTournament() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`SELECT id, title, organizer_id, status, registration_start, registration_end
			FROM %stournaments WHERE id = ?`, s.prefix)
	return s.prepareStmt("selectTournament", query)
}

func (s *MySql) stmtUpsertWebhookEvent() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`INSERT INTO %swebhook_events
			(event_id, type, entry_id, session_id, outcome, error, received_at, deliveries)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)
			ON DUPLICATE KEY UPDATE
				outcome = VALUES(outcome),
				error = VALUES(error),
				received_at = VALUES(received_at),
				deliveries = deliveries + 1`, s.prefix)
	return s.prepareStmt("upsertWebhookEvent", query)
}

func (s *MySql) stmtSelectUser() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT id, username, name, email, token FROM %susers WHERE token = ?`, s.prefix)
	return s.prepareStmt("selectUser", query)
}
