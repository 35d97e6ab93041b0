package metadata

// Schema creates the files table. The statements are valid for both SQLite
// and PostgreSQL.
const Schema = `
-- Files table: one row per committed upload
CREATE TABLE IF NOT EXISTS files (
    id          VARCHAR(36) PRIMARY KEY,
    name        TEXT NOT NULL,
    path        TEXT NOT NULL,
    size        BIGINT NOT NULL CHECK (size >= 0),
    uploaded_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_uploaded_at ON files(uploaded_at);
`

// fileColumns is the column list shared by every SELECT.
const fileColumns = `id, name, path, size, uploaded_at`
