package database

import (
	"fmt"
	"strings"
)

// tables lists the DDL the store needs; the catalog tables are normally owned
// by the platform and are only created here when missing.
var tables = []struct {
	name string
	ddl  string
}{
	{"users", `(
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		username VARCHAR(128) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		token VARCHAR(255) NOT NULL,
		UNIQUE KEY ux_users_token (token)
	)`},
	{"tournaments", `(
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL DEFAULT '',
		organizer_id VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'draft',
		registration_start DATETIME(6) NOT NULL,
		registration_end DATETIME(6) NOT NULL
	)`},
	{"categories", `(
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		tournament_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		registration_fee DECIMAL(10,2) NOT NULL DEFAULT 0,
		FOREIGN KEY (tournament_id) REFERENCES %[1]stournaments (id)
	)`},
	{"entries", `(
		id CHAR(36) NOT NULL PRIMARY KEY,
		category_id VARCHAR(64) NOT NULL,
		created_by VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		payment_status VARCHAR(16) NOT NULL DEFAULT 'unpaid',
		payment_reference VARCHAR(255) NULL,
		payment_amount DECIMAL(10,2) NULL,
		payment_currency CHAR(3) NOT NULL DEFAULT 'usd',
		paid_at DATETIME(6) NULL,
		checkout_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY ux_entries_category_creator (category_id, created_by),
		KEY ix_entries_awaiting (payment_status, checkout_at),
		FOREIGN KEY (category_id) REFERENCES %[1]scategories (id)
	)`},
	{"entry_members", `(
		entry_id CHAR(36) NOT NULL,
		profile_id VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (entry_id, profile_id),
		FOREIGN KEY (entry_id) REFERENCES %[1]sentries (id)
	)`},
	{"webhook_events", `(
		event_id VARCHAR(255) NOT NULL PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		entry_id VARCHAR(64) NOT NULL DEFAULT '',
		session_id VARCHAR(255) NOT NULL DEFAULT '',
		outcome VARCHAR(32) NOT NULL,
		error TEXT NULL,
		received_at DATETIME(6) NOT NULL,
		deliveries INT NOT NULL DEFAULT 1
	)`},
}

func (s *MySql) createTables() error {
	for _, table := range tables {
		ddl := table.ddl
		if strings.Contains(ddl, "%[1]s") {
			ddl = fmt.Sprintf(ddl, s.prefix)
		}
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s%s %s", s.prefix, table.name, ddl)
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("create table %s: %w", table.name, err)
		}
	}
	return nil
}
