package db

// SchemaSQL contains the database schema initialization SQL.
// Conversations are stored as whole-record snapshots: the messages array
// lives inside the conversation record, so a single UPSERT replaces the
// full history atomically.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS system_prompt ON conversation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS messages ON conversation TYPE array<object> FLEXIBLE;
    -- Note: Must REMOVE then DEFINE to ensure FLEXIBLE is set (IF NOT EXISTS won't update existing field)
    REMOVE FIELD IF EXISTS messages.* ON conversation;
    DEFINE FIELD messages.* ON conversation TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_updated ON conversation FIELDS updated_at;

    -- ==========================================================================
    -- TEMPLATE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS template SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON template TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON template TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS content ON template TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON template TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON template TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS template_name ON template FIELDS name UNIQUE;
`
