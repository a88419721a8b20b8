package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables used by the checkout service.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          VARCHAR(64)   NOT NULL PRIMARY KEY,
		slug        VARCHAR(191)  NOT NULL UNIQUE,
		title       VARCHAR(255)  NOT NULL,
		price       DECIMAL(12,2) NULL,
		stock       INT           NULL,
		campus_id   VARCHAR(64)   NULL,
		metadata    JSON          NULL,
		created_at  DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS stock_reservations (
		id          CHAR(36)      NOT NULL PRIMARY KEY,
		product_id  VARCHAR(64)   NOT NULL,
		actor_id    VARCHAR(64)   NOT NULL,
		quantity    INT           NOT NULL,
		expires_at  DATETIME      NOT NULL,
		created_at  DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_reservations_product_expiry (product_id, expires_at),
		KEY idx_reservations_actor (actor_id, product_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                       CHAR(36)      NOT NULL PRIMARY KEY,
		actor_id                 VARCHAR(64)   NOT NULL,
		status                   VARCHAR(16)   NOT NULL,
		currency                 CHAR(3)       NOT NULL,
		subtotal                 DECIMAL(12,2) NOT NULL,
		discount_total           DECIMAL(12,2) NOT NULL,
		total                    DECIMAL(12,2) NOT NULL,
		buyer_name               VARCHAR(255)  NOT NULL,
		buyer_email              VARCHAR(255)  NOT NULL,
		buyer_phone              VARCHAR(32)   NOT NULL,
		membership_applied       TINYINT(1)    NOT NULL DEFAULT 0,
		member_discount_percent  DECIMAL(5,2)  NOT NULL DEFAULT 0,
		items_json               JSON          NOT NULL,
		campus_id                VARCHAR(64)   NULL,
		vipps_session_id         VARCHAR(255)  NULL,
		vipps_checkout_url       VARCHAR(1024) NULL,
		created_at               DATETIME      NOT NULL,
		updated_at               DATETIME      NOT NULL,
		KEY idx_orders_actor_status (actor_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
