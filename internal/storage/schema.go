package storage

const schema = `
-- The 'cards' table is the durable snapshot of every flashcard, library and
-- active alike. In-memory state is authoritative for the session; rows here
-- are last-write-wins.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    folder_id TEXT,
    meaning TEXT NOT NULL,
    word TEXT NOT NULL,
    keyword TEXT,
    story TEXT,
    image_prompt TEXT,
    image_ref TEXT,
    status TEXT NOT NULL DEFAULT 'library',
    interval_index INTEGER NOT NULL DEFAULT 0,
    next_review_ms INTEGER NOT NULL DEFAULT 0
);

-- Folders are a flat namespace. No foreign key on cards.folder_id on
-- purpose: deleting a folder leaves its cards with a dangling reference.
CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL
);

-- Single-row JSON blobs keyed by logical name ('settings').
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Deck sources for bulk import, either a local directory or a git URL.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);
`
