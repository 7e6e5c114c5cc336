package sqlite

const schema = `
-- Items table: one row per fingerprinted image. Presence here is what
-- "live" means; relations may only reference live items.
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    source_root TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_fingerprint ON items(fingerprint);
CREATE INDEX IF NOT EXISTS idx_items_source_root ON items(source_root);

-- Relations table: canonical unordered pair (id1 < id2). The cascade on
-- both endpoints is what makes item deletion atomic with respect to its
-- relations; the per-endpoint indexes keep the cascade sub-linear.
CREATE TABLE IF NOT EXISTS relations (
    id1 TEXT NOT NULL,
    id2 TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'new_match'
        CHECK(kind IN ('new_match', 'not_duplicate', 'near_duplicate', 'similar', 'same_set')),
    distance INTEGER NOT NULL DEFAULT 0 CHECK(distance >= 0),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id1, id2),
    CHECK (id1 < id2),
    FOREIGN KEY (id1) REFERENCES items(id) ON DELETE CASCADE,
    FOREIGN KEY (id2) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_relations_id1 ON relations(id1);
CREATE INDEX IF NOT EXISTS idx_relations_id2 ON relations(id2);

-- Scan roots: the registered source locations, used as the default scope.
CREATE TABLE IF NOT EXISTS scan_roots (
    path TEXT PRIMARY KEY
);

-- Sticky clusters and their memberships. Memberships cascade with both
-- the cluster and the item.
CREATE TABLE IF NOT EXISTS clusters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cluster_members (
    cluster_id INTEGER NOT NULL,
    item_id TEXT NOT NULL,
    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (cluster_id, item_id),
    FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cluster_members_item ON cluster_members(item_id);
`
