package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The dispatch_iff_approved check keeps dispatch columns tied to the approved status.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            uuid PRIMARY KEY,
	email         text NOT NULL UNIQUE,
	full_name     text NOT NULL,
	password_hash text NOT NULL,
	role          text NOT NULL CHECK (role IN ('user', 'admin')),
	created_at    timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id                       uuid PRIMARY KEY,
	user_id                  uuid REFERENCES users (id) ON DELETE SET NULL,
	status                   text NOT NULL DEFAULT 'pending'
	                         CHECK (status IN ('pending', 'approved', 'rejected')),
	media_ref                text NOT NULL,
	media_content_type       text NOT NULL,
	media_size               bigint NOT NULL CHECK (media_size >= 0),
	media_kind               text NOT NULL CHECK (media_kind IN ('image', 'video')),
	latitude                 double precision NOT NULL CHECK (latitude BETWEEN -90 AND 90),
	longitude                double precision NOT NULL CHECK (longitude BETWEEN -180 AND 180),
	address                  text NOT NULL DEFAULT '',
	description              text NOT NULL DEFAULT '',
	phone_number             text NOT NULL DEFAULT '',
	is_accident              boolean NOT NULL,
	confidence               double precision NOT NULL,
	accident_probability     double precision NOT NULL,
	non_accident_probability double precision NOT NULL,
	ambulance                text,
	hospital                 text,
	eta                      text,
	eta_minutes              integer,
	severity                 text CHECK (severity IN ('minor', 'moderate', 'severe')),
	sms_status               text NOT NULL DEFAULT 'not_processed'
	                         CHECK (sms_status IN ('not_processed', 'pending', 'sent', 'failed', 'no_phone')),
	sms_sent_at              timestamptz,
	sms_error                text NOT NULL DEFAULT '',
	admin_notes              text NOT NULL DEFAULT '',
	reviewed_by              text NOT NULL DEFAULT '',
	reviewed_at              timestamptz,
	created_at               timestamptz NOT NULL,
	updated_at               timestamptz NOT NULL,
	CONSTRAINT dispatch_iff_approved CHECK ((status = 'approved') = (ambulance IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC);
CREATE INDEX IF NOT EXISTS reports_user_id_idx ON reports (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS reports_sms_pending_idx ON reports (reviewed_at) WHERE sms_status = 'pending';
`

// EnsureSchema creates the tables when missing. Safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
