package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"jee-solver/api/internal/conversation"
)

// Schema creates the two tables used by the Postgres backend. Safe to run on
// every start.
const Schema = `
create table if not exists conversations (
  conv_key     text primary key,
  context_json jsonb not null,
  updated_at   timestamptz not null default now()
);

create table if not exists answers_cache (
  input_hash  text not null,
  engine      text not null,
  model       text not null,
  raw_answer  text not null,
  extracted   text not null default '',
  created_at  timestamptz not null default now(),
  primary key (input_hash, engine, model)
);`

// OpenPostgres opens a pooled connection through the pgx stdlib driver,
// checks it and applies Schema.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// small pool, the load is a few chats at a time
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ConversationRepo stores conversation contexts as jsonb rows.
type ConversationRepo struct {
	DB *sql.DB
	// MaxAge > 0 makes older rows read as missing.
	MaxAge time.Duration
}

func NewConversationRepo(db *sql.DB, maxAge time.Duration) *ConversationRepo {
	return &ConversationRepo{DB: db, MaxAge: maxAge}
}

// Get reads an expired row as missing. A row that does not decode is an error.
func (r *ConversationRepo) Get(ctx context.Context, key string) (*conversation.Context, error) {
	const q = `select context_json, updated_at from conversations where conv_key = $1`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, key).Scan(&js, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	if r.MaxAge > 0 && time.Since(ts) > r.MaxAge {
		return nil, conversation.ErrNotFound
	}
	return decodeContext(key, js)
}

func (r *ConversationRepo) Put(ctx context.Context, key string, c *conversation.Context) error {
	js, err := json.Marshal(c)
	if err != nil {
		return err
	}
	const q = `
insert into conversations (conv_key, context_json, updated_at)
values ($1, $2, now())
on conflict (conv_key) do update
set context_json = excluded.context_json,
    updated_at = now()`
	_, err = r.DB.ExecContext(ctx, q, key, js)
	return err
}

// PurgeOlderThan deletes conversations not updated within olderThan.
func (r *ConversationRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	res, err := r.DB.ExecContext(ctx, `delete from conversations where updated_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *ConversationRepo) Ping(ctx context.Context) error { return r.DB.PingContext(ctx) }

// Answer is a cached raw model answer for one input.
type Answer struct {
	Raw       string
	Extracted string
	CreatedAt time.Time
}

// AnswerRepo caches raw answers per (input hash, engine, model) so a
// resubmitted question does not hit the model again.
type AnswerRepo struct{ DB *sql.DB }

func NewAnswerRepo(db *sql.DB) *AnswerRepo { return &AnswerRepo{DB: db} }

// Find returns the cached answer. With maxAge > 0 an older row reads as
// sql.ErrNoRows so the caller asks the model again.
func (r *AnswerRepo) Find(ctx context.Context, inputHash, engine, model string, maxAge time.Duration) (Answer, error) {
	const q = `select raw_answer, extracted, created_at
	           from answers_cache
	           where input_hash=$1 and engine=$2 and model=$3`
	var a Answer
	if err := r.DB.QueryRowContext(ctx, q, inputHash, engine, model).Scan(&a.Raw, &a.Extracted, &a.CreatedAt); err != nil {
		return Answer{}, err
	}
	if maxAge > 0 && time.Since(a.CreatedAt) > maxAge {
		return Answer{}, sql.ErrNoRows
	}
	return a, nil
}

// Upsert stores or replaces the answer keyed by (input_hash, engine, model).
func (r *AnswerRepo) Upsert(ctx context.Context, inputHash, engine, model string, a Answer) error {
	const q = `
insert into answers_cache(input_hash, engine, model, raw_answer, extracted)
values ($1,$2,$3,$4,$5)
on conflict (input_hash, engine, model)
do update set raw_answer=excluded.raw_answer, extracted=excluded.extracted, created_at=now()`
	_, err := r.DB.ExecContext(ctx, q, inputHash, engine, model, a.Raw, a.Extracted)
	return err
}
