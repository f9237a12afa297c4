package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	// Identity provider. Accounts own exactly one profile record in users.
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url VARCHAR(1000),
		provider VARCHAR(50) NOT NULL,
		provider_id VARCHAR(255) NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(provider, provider_id)
	)`,

	// Profile records deliberately carry no foreign key to accounts: the two
	// stores drift when a lifecycle trigger fails and sync-users repairs it.
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url VARCHAR(1000),
		role VARCHAR(20) NOT NULL DEFAULT 'Viewer',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS wiki_pages (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		slug VARCHAR(255) UNIQUE NOT NULL,
		title VARCHAR(500) NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		header_image_url VARCHAR(1000),
		tags TEXT[] NOT NULL DEFAULT '{}',
		author_id UUID NOT NULL,
		author_display_name VARCHAR(255) NOT NULL DEFAULT '',
		author_avatar_url VARCHAR(1000),
		last_editor_id UUID,
		last_editor_display_name VARCHAR(255),
		last_editor_avatar_url VARCHAR(1000),
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		view_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL UNIQUE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
	`CREATE INDEX IF NOT EXISTS idx_users_display_name ON users(display_name)`,
	`CREATE INDEX IF NOT EXISTS idx_wiki_pages_author_id ON wiki_pages(author_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wiki_pages_last_editor_id ON wiki_pages(last_editor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wiki_pages_status ON wiki_pages(status)`,
	`CREATE INDEX IF NOT EXISTS idx_wiki_pages_tags ON wiki_pages USING gin (tags)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id)`,

	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE INDEX IF NOT EXISTS idx_wiki_pages_title_search ON wiki_pages USING gin (title gin_trgm_ops)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
