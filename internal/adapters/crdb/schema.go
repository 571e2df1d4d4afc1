package crdb

import "context"

const schema = `
CREATE SEQUENCE IF NOT EXISTS queue_order_seq;

CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0)
);

CREATE TABLE IF NOT EXISTS queue_tokens (
	id UUID PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	user_id UUID NOT NULL,
	queue_order BIGINT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('WAITING', 'ACTIVE', 'EXPIRED')),
	issued_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	UNIQUE INDEX queue_tokens_one_live_per_user (user_id) WHERE status <> 'EXPIRED'
);

CREATE TABLE IF NOT EXISTS concerts (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	singer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS concert_options (
	id UUID PRIMARY KEY,
	concert_id UUID NOT NULL,
	venue TEXT NOT NULL,
	concert_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS seats (
	id UUID PRIMARY KEY,
	concert_option_id UUID NOT NULL,
	seat_no INT NOT NULL,
	price BIGINT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('AVAILABLE', 'HELD', 'RESERVED'))
);

CREATE TABLE IF NOT EXISTS reservations (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	seat_id UUID NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('TEMP_ASSIGNED', 'PAID', 'EXPIRED')),
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED')),
	dedupe_key TEXT NOT NULL
);
`

// EnsureSchema creates the tables and the queue-order sequence if they do not
// exist yet. Used by the entry points and the integration tests.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}
