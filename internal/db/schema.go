package db

const messageTable = "message"

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS sender ON message TYPE string ASSERT string::len($value) > 0;
    DEFINE FIELD IF NOT EXISTS peer ON message TYPE string ASSERT string::len($value) > 0;
    -- Sorted [sender, peer] so both directions share one lookup key
    DEFINE FIELD IF NOT EXISTS users ON message TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS text ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_users ON message FIELDS users;
    DEFINE INDEX IF NOT EXISTS message_created ON message FIELDS created_at;
`
