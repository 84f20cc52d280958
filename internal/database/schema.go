package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the ledger tables. Money columns hold minor units.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS restaurant_tables (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		restaurant_id CHAR(36)     NOT NULL,
		label         VARCHAR(64)  NOT NULL,
		KEY idx_tables_restaurant (restaurant_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS products (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		restaurant_id CHAR(36)     NOT NULL,
		name          VARCHAR(255) NOT NULL,
		price         BIGINT       NOT NULL,
		available     BOOLEAN      NOT NULL DEFAULT TRUE,
		KEY idx_products_restaurant (restaurant_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		table_id      CHAR(36)     NOT NULL,
		restaurant_id CHAR(36)     NOT NULL,
		status        ENUM('active','closed') NOT NULL,
		note          TEXT         NULL,
		created_at    DATETIME(6)  NOT NULL,
		closed_at     DATETIME(6)  NULL,
		KEY idx_sessions_table_status (table_id, status),
		KEY idx_sessions_restaurant_status (restaurant_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		session_id    CHAR(36)     NOT NULL,
		product_id    CHAR(36)     NOT NULL,
		product_name  VARCHAR(255) NOT NULL,
		quantity      INT          NOT NULL,
		unit_price    BIGINT       NOT NULL,
		status        ENUM('draft','pending','confirmed','preparing','ready','served','cancelled') NOT NULL,
		notes         TEXT         NULL,
		created_by    VARCHAR(64)  NOT NULL,
		created_role  VARCHAR(16)  NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		KEY idx_items_session (session_id, created_at),
		CONSTRAINT chk_items_quantity CHECK (quantity >= 1),
		CONSTRAINT fk_items_session FOREIGN KEY (session_id) REFERENCES sessions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bills (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		session_id    CHAR(36)     NOT NULL,
		total_amount  BIGINT       NOT NULL,
		paid_amount   BIGINT       NOT NULL DEFAULT 0,
		status        ENUM('UNPAID','PAID') NOT NULL,
		adjustments   JSON         NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		updated_at    DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_bills_session (session_id),
		CONSTRAINT fk_bills_session FOREIGN KEY (session_id) REFERENCES sessions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		bill_id       CHAR(36)     NOT NULL,
		amount        BIGINT       NOT NULL,
		method        VARCHAR(16)  NOT NULL,
		recorded_by   VARCHAR(64)  NOT NULL,
		paid_items    JSON         NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		KEY idx_transactions_bill (bill_id),
		CONSTRAINT fk_transactions_bill FOREIGN KEY (bill_id) REFERENCES bills(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		restaurant_id CHAR(36)     NOT NULL,
		session_id    CHAR(36)     NOT NULL,
		action        VARCHAR(32)  NOT NULL,
		actor_id      VARCHAR(64)  NOT NULL,
		details       JSON         NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		KEY idx_activity_session (session_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS service_requests (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		session_id    CHAR(36)     NOT NULL,
		table_id      CHAR(36)     NOT NULL,
		kind          VARCHAR(16)  NOT NULL,
		status        ENUM('pending','resolved') NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		resolved_at   DATETIME(6)  NULL,
		KEY idx_requests_session_status (session_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing ledger table. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
